package indicator

// SMMA calculates Smoothed Moving Average (Wilder-style smoothing).
// Until period values have arrived the value is the running mean; from then
// on SMMA = (prev*(period-1) + price) / period.
type SMMA struct {
	period  int
	count   int
	sum     float64
	current float64
}

// NewSMMA creates a new SMMA indicator with the given period.
func NewSMMA(period int) *SMMA {
	if period < 1 {
		period = 1
	}
	return &SMMA{period: period}
}

func (s *SMMA) Name() string { return "SMMA" }

func (s *SMMA) Update(price float64) {
	s.count++

	if s.count <= s.period {
		s.sum += price
		s.current = s.sum / float64(s.count)
		return
	}

	// Wilder-style smoothing
	s.current = (s.current*float64(s.period-1) + price) / float64(s.period)
}

func (s *SMMA) Value() float64 { return s.current }

// Ready reports whether at least one value has been seen; the running mean
// is a valid value during warm-up.
func (s *SMMA) Ready() bool { return s.count > 0 }

// Warm reports whether the full period has been accumulated.
func (s *SMMA) Warm() bool { return s.count >= s.period }

// Reset clears the SMMA state for reuse.
func (s *SMMA) Reset() {
	s.count = 0
	s.sum = 0
	s.current = 0
}
