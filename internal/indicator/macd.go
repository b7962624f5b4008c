package indicator

// MACD periods.
const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// MACDMinSamples is the shortest series MACD accepts: the slow EMA plus the
// signal EMA over its output.
const MACDMinSamples = MACDSlow + MACDSignal - 1

// MACDResult holds index-aligned line, signal and histogram series.
// Histogram[i] == Line[i] - Signal[i] for every i.
type MACDResult struct {
	Line      []float64 `json:"line"`
	Signal    []float64 `json:"signal"`
	Histogram []float64 `json:"histogram"`
}

// MACD computes EMA12 - EMA26 and its 9-period EMA signal over series.
// The line is trimmed to the span where the signal exists so all three
// series share indices.
func MACD(series []float64) (MACDResult, error) {
	if len(series) < MACDMinSamples {
		return MACDResult{}, ErrInsufficientHistory
	}

	fast := EMASeries(series, MACDFast)
	slow := EMASeries(series, MACDSlow)
	off := len(fast) - len(slow)

	line := make([]float64, len(slow))
	for i := range slow {
		line[i] = fast[i+off] - slow[i]
	}
	signal := EMASeries(line, MACDSignal)
	line = line[len(line)-len(signal):]

	hist := make([]float64, len(signal))
	for i := range signal {
		hist[i] = line[i] - signal[i]
	}
	return MACDResult{Line: line, Signal: signal, Histogram: hist}, nil
}

// LastHistogram returns the newest histogram value, 0 if empty.
func (m MACDResult) LastHistogram() float64 { return last(m.Histogram) }

// cmp returns line and signal at offset back from the newest bar.
func (m MACDResult) cmp(back int) (line, signal float64, ok bool) {
	i := len(m.Line) - 1 - back
	if i < 0 || i >= len(m.Signal) {
		return 0, 0, false
	}
	return m.Line[i], m.Signal[i], true
}

// BullishCrossover reports that the line crossed above the signal on the
// newest bar.
func (m MACDResult) BullishCrossover() bool {
	l0, s0, ok0 := m.cmp(0)
	l1, s1, ok1 := m.cmp(1)
	return ok0 && ok1 && l0 > s0 && l1 < s1
}

// BearishCrossover reports that the line crossed below the signal on the
// newest bar.
func (m MACDResult) BearishCrossover() bool {
	l0, s0, ok0 := m.cmp(0)
	l1, s1, ok1 := m.cmp(1)
	return ok0 && ok1 && l0 < s0 && l1 > s1
}

// ConfirmedBullishCrossover is BullishCrossover with the line also below the
// signal two bars back.
func (m MACDResult) ConfirmedBullishCrossover() bool {
	l2, s2, ok := m.cmp(2)
	return ok && m.BullishCrossover() && l2 < s2
}

// ConfirmedBearishCrossover is BearishCrossover with the line also above the
// signal two bars back.
func (m MACDResult) ConfirmedBearishCrossover() bool {
	l2, s2, ok := m.cmp(2)
	return ok && m.BearishCrossover() && l2 > s2
}
