package indicator

import "math"

// RSIPeriod is the look-back used for every RSI in the engine.
const RSIPeriod = 14

// RSI calculates the Relative Strength Index using Wilder's smoothing method.
// Average gain and loss are SMMAs of the per-update deltas, so the first
// period deltas use a running mean. Update is O(1) per price.
type RSI struct {
	period    int
	count     int
	prevClose float64
	avgGain   *SMMA
	avgLoss   *SMMA
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{
		period:  period,
		avgGain: NewSMMA(period),
		avgLoss: NewSMMA(period),
	}
}

func (r *RSI) Name() string { return "RSI" }

func (r *RSI) Update(price float64) {
	r.count++

	if r.count == 1 {
		// First price, no delta yet
		r.prevClose = price
		return
	}

	delta := price - r.prevClose
	r.prevClose = price

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}
	r.avgGain.Update(gain)
	r.avgLoss.Update(loss)

	ag, al := r.avgGain.Value(), r.avgLoss.Value()
	if al == 0 {
		r.current = 100.0
		return
	}
	rs := ag / al
	r.current = 100.0 - (100.0 / (1.0 + rs))
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.count > 1 }

// Reset clears the RSI state for reuse.
func (r *RSI) Reset() {
	r.count = 0
	r.prevClose = 0
	r.current = 0
	r.avgGain.Reset()
	r.avgLoss.Reset()
}

// RSISeries computes the 14-period RSI of series and drops every value that
// is exactly 0 or 100 (or NaN): those only occur when one side of the
// gain/loss average is empty and carry no signal. A flat series therefore
// yields an empty, non-nil slice. Fewer than RSIPeriod prices returns
// ErrInsufficientHistory.
func RSISeries(series []float64) ([]float64, error) {
	if len(series) < RSIPeriod {
		return nil, ErrInsufficientHistory
	}
	raw := replay(NewRSI(RSIPeriod), series)
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v == 0 || v == 100 || math.IsNaN(v) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
