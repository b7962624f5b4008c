// Package ringbuf provides a fixed-capacity ring buffer of price ticks that
// evicts the oldest entry once full. Push is O(1) and allocation-free.
//
// Ring is not goroutine-safe; the owner (series.Store) serialises access.
package ringbuf

import "alphabot/internal/model"

// Ring holds the newest Cap() ticks in arrival order.
type Ring struct {
	buf   []model.Tick
	start int // index of the oldest element
	n     int // number of stored elements

	// Evictions counts ticks dropped to make room (for metrics).
	evicted uint64
}

// New creates a ring with the given capacity. Minimum capacity is 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]model.Tick, capacity)}
}

// Push appends a tick, overwriting the oldest one when the ring is full.
// Returns true if an element was evicted.
func (r *Ring) Push(t model.Tick) bool {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = t
		r.n++
		return false
	}
	r.buf[r.start] = t
	r.start = (r.start + 1) % len(r.buf)
	r.evicted++
	return true
}

// Last returns the newest tick.
func (r *Ring) Last() (model.Tick, bool) {
	if r.n == 0 {
		return model.Tick{}, false
	}
	return r.buf[(r.start+r.n-1)%len(r.buf)], true
}

// At returns the i-th oldest tick (0 = oldest).
func (r *Ring) At(i int) model.Tick {
	return r.buf[(r.start+i)%len(r.buf)]
}

// Ticks copies the stored ticks, oldest first.
func (r *Ring) Ticks() []model.Tick {
	out := make([]model.Tick, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.At(i)
	}
	return out
}

// Prices copies the newest n prices, oldest first. n<=0 or n>Len() returns all.
func (r *Ring) Prices(n int) []float64 {
	if n <= 0 || n > r.n {
		n = r.n
	}
	out := make([]float64, n)
	off := r.n - n
	for i := 0; i < n; i++ {
		out[i] = r.At(off + i).Price
	}
	return out
}

// Reset drops every stored tick.
func (r *Ring) Reset() {
	r.start = 0
	r.n = 0
}

// Len returns the current number of ticks in the ring.
func (r *Ring) Len() int {
	return r.n
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Evicted returns the total number of ticks dropped due to a full ring.
func (r *Ring) Evicted() uint64 {
	return r.evicted
}
