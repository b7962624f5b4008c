package indicator

import "math"

// SwingHighLow returns the high and low of every complete window of series.
// A trailing partial window is ignored.
func SwingHighLow(series []float64, window int) (highs, lows []float64) {
	if window < 1 {
		return nil, nil
	}
	highs = make([]float64, 0, len(series)/window)
	lows = make([]float64, 0, len(series)/window)

	hi, lo := math.Inf(-1), math.Inf(1)
	for i, v := range series {
		hi = max(hi, v)
		lo = min(lo, v)
		if (i+1)%window == 0 {
			highs = append(highs, hi)
			lows = append(lows, lo)
			hi, lo = math.Inf(-1), math.Inf(1)
		}
	}
	return highs, lows
}

// Extreme is the result of a top or bottom scan.
type Extreme struct {
	Value           float64 `json:"value"`
	Index           int     `json:"index"` // index into the scanned series, -1 if none
	IsTrendReversal bool    `json:"is_trend_reversal"`
}

// DetectTop scans the newest lookback values of prices from newest to
// oldest, tracking the running maximum. Each time a new maximum is found it
// is compared with the one it replaced; the reversal flag reflects only the
// last such comparison, i.e. whether the overall top rose by at least
// threshold (relative) over the previous running maximum.
func DetectTop(prices []float64, threshold float64, lookback int) Extreme {
	return scanExtreme(prices, threshold, lookback, func(v, best float64) bool { return v > best },
		func(cur, prev float64) float64 { return (cur - prev) / prev }, math.Inf(-1))
}

// DetectBottom is DetectTop for minima: the flag is set when the overall
// bottom lies at least threshold (relative) below the previous running
// minimum.
func DetectBottom(prices []float64, threshold float64, lookback int) Extreme {
	return scanExtreme(prices, threshold, lookback, func(v, best float64) bool { return v < best },
		func(cur, prev float64) float64 { return (prev - cur) / prev }, math.Inf(1))
}

func scanExtreme(prices []float64, threshold float64, lookback int,
	better func(v, best float64) bool, move func(cur, prev float64) float64, init float64) Extreme {

	res := Extreme{Value: init, Index: -1}
	if lookback > len(prices) {
		lookback = len(prices)
	}
	prevIdx := -1
	prev := init
	for i := len(prices) - 1; i >= len(prices)-lookback; i-- {
		if !better(prices[i], res.Value) {
			continue
		}
		prev, prevIdx = res.Value, res.Index
		res.Value, res.Index = prices[i], i
		res.IsTrendReversal = prevIdx >= 0 && prev != 0 && move(res.Value, prev) >= threshold
	}
	if res.Index < 0 {
		res.Value = 0
	}
	return res
}
