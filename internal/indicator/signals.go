package indicator

// RSIBuySignal reports that the newest RSI is below lower after RSI already
// climbed back across lower once within the newest period values: a second
// dip into oversold territory.
func RSIBuySignal(history []float64, period int, lower float64) bool {
	n := len(history)
	if n < 2 || history[n-1] >= lower {
		return false
	}
	start := max(n-period, 1)
	if start == 1 && history[0] >= lower {
		return false
	}
	for i := start; i < n; i++ {
		if history[i-1] < lower && history[i] >= lower {
			return true
		}
	}
	return false
}

// RSISellSignal mirrors RSIBuySignal above upper.
func RSISellSignal(history []float64, period int, upper float64) bool {
	n := len(history)
	if n < 2 || history[n-1] <= upper {
		return false
	}
	start := max(n-period, 1)
	if start == 1 && history[0] <= upper {
		return false
	}
	for i := start; i < n; i++ {
		if history[i-1] > upper && history[i] <= upper {
			return true
		}
	}
	return false
}
