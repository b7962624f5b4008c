package indicator

import (
	"math"
	"sync"
)

// DefaultHistoryCap bounds the cumulative RSI record.
const DefaultHistoryCap = 1080

// RSIHistory is the cumulative record of RSI values observed across
// evaluation cycles. Values are rounded to 4 decimal places and a value
// already present in the record is not added again, so re-computing RSI over
// an overlapping window only contributes the values not seen before.
// Goroutine-safe.
type RSIHistory struct {
	mu     sync.Mutex
	cap    int
	values []float64
	seen   map[float64]struct{}
}

// NewRSIHistory creates a history bounded to capacity values.
func NewRSIHistory(capacity int) *RSIHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &RSIHistory{
		cap:  capacity,
		seen: make(map[float64]struct{}, capacity),
	}
}

// Merge adds every value of rsi not already recorded and returns how many
// were added.
func (h *RSIHistory) Merge(rsi []float64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	added := 0
	for _, v := range rsi {
		r := math.Round(v*1e4) / 1e4
		if _, ok := h.seen[r]; ok {
			continue
		}
		h.values = append(h.values, r)
		h.seen[r] = struct{}{}
		added++
	}
	if excess := len(h.values) - h.cap; excess > 0 {
		for _, v := range h.values[:excess] {
			delete(h.seen, v)
		}
		h.values = append(h.values[:0:0], h.values[excess:]...)
	}
	return added
}

// Latest returns the newest recorded RSI.
func (h *RSIHistory) Latest() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.values) == 0 {
		return 0, ErrInsufficientHistory
	}
	return h.values[len(h.values)-1], nil
}

// Recent returns a copy of the newest n values, oldest first.
func (h *RSIHistory) Recent(n int) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	src := tail(h.values, n)
	if n <= 0 {
		src = h.values
	}
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

// Len returns the number of recorded values.
func (h *RSIHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.values)
}

// Seed replaces the record, e.g. after a restart.
func (h *RSIHistory) Seed(values []float64) {
	h.mu.Lock()
	h.values = nil
	h.seen = make(map[float64]struct{}, h.cap)
	h.mu.Unlock()
	h.Merge(values)
}
