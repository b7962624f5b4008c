// Package indicator computes the technical indicators the decision engine
// reads: SMA, EMA, RSI, MACD, parabolic SAR, swing highs/lows, reversal
// detection and trend direction.
//
// The streaming indicators (SMA, EMA, SMMA, RSI) are O(1) per update. The
// series functions of the same names replay a price slice through them and
// are pure: the same input always yields the same output.
package indicator

import "errors"

// ErrInsufficientHistory is returned when a series is too short for an
// indicator. It is fatal to the current evaluation cycle only.
var ErrInsufficientHistory = errors.New("indicator: insufficient history")

// Indicator is the interface for the streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "RSI").
	Name() string

	// Update feeds a new price and recalculates.
	Update(price float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Reset clears the state for reuse.
	Reset()
}

// replay feeds series through ind and collects Value() for every update at
// which ind is ready.
func replay(ind Indicator, series []float64) []float64 {
	out := make([]float64, 0, len(series))
	for _, p := range series {
		ind.Update(p)
		if ind.Ready() {
			out = append(out, ind.Value())
		}
	}
	return out
}

func last(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}
