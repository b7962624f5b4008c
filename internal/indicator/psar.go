package indicator

// Trend is the parabolic SAR trend tag of one bar.
type Trend int

const (
	TrendFalling Trend = -1
	TrendStable  Trend = 0
	TrendRising  Trend = 1
)

func (t Trend) String() string {
	switch t {
	case TrendRising:
		return "rising"
	case TrendFalling:
		return "falling"
	default:
		return "stable"
	}
}

// SAR acceleration factor settings.
const (
	SARStep = 0.02
	SARMax  = 0.2
)

// PSARResult holds one SAR value and trend per input bar.
type PSARResult struct {
	Values []float64 `json:"values"`
	Trends []Trend   `json:"trends"`
}

// Last returns the newest SAR value and trend.
func (p PSARResult) Last() (float64, Trend) {
	if len(p.Values) == 0 {
		return 0, TrendStable
	}
	return p.Values[len(p.Values)-1], p.Trends[len(p.Trends)-1]
}

// ParabolicSAR computes the stop-and-reverse series for index-aligned
// highs, lows and closes. Bar 0 has SAR = low[0] and a stable trend; from bar
// 1 the trend starts rising and flips whenever price penetrates the SAR.
func ParabolicSAR(highs, lows, closes []float64) (PSARResult, error) {
	n := len(closes)
	if len(highs) < n {
		n = len(highs)
	}
	if len(lows) < n {
		n = len(lows)
	}
	if n < 2 {
		return PSARResult{}, ErrInsufficientHistory
	}

	values := make([]float64, n)
	trends := make([]Trend, n)
	values[0] = lows[0]
	trends[0] = TrendStable

	rising := true
	af := SARStep
	ep := highs[0]

	for i := 1; i < n; i++ {
		sar := values[i-1] + af*(ep-values[i-1])

		if rising {
			sar = min(sar, lows[i-1])
			if i > 1 {
				sar = min(sar, lows[i-2])
			}
			if lows[i] < sar {
				rising = false
				sar = ep
				ep = lows[i]
				af = SARStep
			} else if highs[i] > ep {
				ep = highs[i]
				af = min(af+SARStep, SARMax)
			}
		} else {
			sar = max(sar, highs[i-1])
			if i > 1 {
				sar = max(sar, highs[i-2])
			}
			if highs[i] > sar {
				rising = true
				sar = ep
				ep = highs[i]
				af = SARStep
			} else if lows[i] < ep {
				ep = lows[i]
				af = min(af+SARStep, SARMax)
			}
		}

		values[i] = sar
		if rising {
			trends[i] = TrendRising
		} else {
			trends[i] = TrendFalling
		}
	}
	return PSARResult{Values: values, Trends: trends}, nil
}
