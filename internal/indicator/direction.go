package indicator

// Direction is the short-term price direction of one timeframe.
type Direction string

const (
	Upward   Direction = "Upward"
	Downward Direction = "Downward"
	Stable   Direction = "Stable"
)

// DetermineDirection compares the two newest values of a coarse series.
// When they are equal (or fewer than two exist) it falls back to the net
// change across recent, a window of the next finer series.
func DetermineDirection(coarse, recent []float64) Direction {
	if n := len(coarse); n >= 2 {
		switch {
		case coarse[n-1] > coarse[n-2]:
			return Upward
		case coarse[n-1] < coarse[n-2]:
			return Downward
		}
	}
	if n := len(recent); n >= 2 {
		switch {
		case recent[n-1] > recent[0]:
			return Upward
		case recent[n-1] < recent[0]:
			return Downward
		}
	}
	return Stable
}

// tail returns the newest n values of s without copying.
func tail(s []float64, n int) []float64 {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}
