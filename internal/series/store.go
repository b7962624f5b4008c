// Package series holds the bounded, ordered price series shared by the feed
// poller, the timeframe aggregators and the evaluation loop.
//
// The 1m base series is append-only with a fixed capacity; derived series are
// written only through UpdateDerived, one aggregator goroutine per timeframe.
// Every read returns a copy, so callers never observe a partially written
// series and may not mutate the store through returned slices.
package series

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"alphabot/internal/model"
	"alphabot/internal/ringbuf"
)

// DefaultCapacity is 18 hours of 1-minute samples.
const DefaultCapacity = 1080

var (
	ErrOutOfOrder       = errors.New("series: tick timestamp not after last tick")
	ErrInvalidPrice     = errors.New("series: invalid price")
	ErrUnknownTimeframe = errors.New("series: unknown timeframe")
	ErrBaseNotDerivable = errors.New("series: base timeframe is not derived")
)

// Store is the SeriesStore: one base tick ring plus the derived series.
type Store struct {
	mu       sync.RWMutex
	capacity int
	base     *ringbuf.Ring
	derived  map[model.Timeframe][]float64
}

// New creates a store whose base and derived series are capped at capacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	derived := make(map[model.Timeframe][]float64, len(model.DerivedTimeframes))
	for _, tf := range model.DerivedTimeframes {
		derived[tf] = make([]float64, 0, 64)
	}
	return &Store{
		capacity: capacity,
		base:     ringbuf.New(capacity),
		derived:  derived,
	}
}

// AppendTick appends a base tick. Ticks must arrive with strictly increasing
// timestamps; an out-of-order tick is rejected, never reordered.
func (s *Store) AppendTick(t model.Tick) error {
	if t.Price <= 0 || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, t.Price)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.base.Last(); ok && !t.TS.After(last.TS) {
		return fmt.Errorf("%w: %s <= %s", ErrOutOfOrder, t.TS.Format("15:04:05"), last.TS.Format("15:04:05"))
	}
	s.base.Push(t)
	return nil
}

// Window returns a copy of the newest n values of a timeframe, oldest first.
// n<=0 (or n larger than the series) returns the whole series.
func (s *Store) Window(tf model.Timeframe, n int) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if tf == model.TF1m {
		return s.base.Prices(n)
	}
	d, ok := s.derived[tf]
	if !ok {
		return nil
	}
	if n <= 0 || n > len(d) {
		n = len(d)
	}
	out := make([]float64, n)
	copy(out, d[len(d)-n:])
	return out
}

// Len returns the length of a timeframe's series.
func (s *Store) Len(tf model.Timeframe) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tf == model.TF1m {
		return s.base.Len()
	}
	return len(s.derived[tf])
}

// Latest returns the newest base tick.
func (s *Store) Latest() (model.Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base.Last()
}

// Capacity returns the per-series capacity.
func (s *Store) Capacity() int { return s.capacity }

// UpdateDerived runs fn against a consistent view of the base prices and the
// current derived series of tf, and appends whatever fn returns. The read and
// the write happen under one lock, so concurrent readers see either the old or
// the new series. Returns the number of values appended.
func (s *Store) UpdateDerived(tf model.Timeframe, fn func(base, derived []float64) []float64) (int, error) {
	if tf == model.TF1m {
		return 0, ErrBaseNotDerivable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.derived[tf]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTimeframe, tf)
	}
	add := fn(s.base.Prices(0), d)
	if len(add) == 0 {
		return 0, nil
	}
	d = append(d, add...)
	if excess := len(d) - s.capacity; excess > 0 {
		d = append(d[:0:0], d[excess:]...)
	}
	s.derived[tf] = d
	return len(add), nil
}

// Snapshot is the persisted form of the store.
type Snapshot struct {
	Base    []model.Tick                  `json:"base"`
	Derived map[model.Timeframe][]float64 `json:"derived"`
}

// Snapshot copies the store contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Base:    s.base.Ticks(),
		Derived: make(map[model.Timeframe][]float64, len(s.derived)),
	}
	for tf, d := range s.derived {
		cp := make([]float64, len(d))
		copy(cp, d)
		snap.Derived[tf] = cp
	}
	return snap
}

// Restore replaces the store contents with a snapshot. Only the newest
// capacity entries are kept; base ticks that break timestamp ordering or carry
// invalid prices are skipped. Returns the number of base ticks restored.
func (s *Store) Restore(snap Snapshot) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.base.Reset()
	ticks := snap.Base
	if len(ticks) > s.capacity {
		ticks = ticks[len(ticks)-s.capacity:]
	}
	restored := 0
	for _, t := range ticks {
		if t.Price <= 0 || math.IsNaN(t.Price) {
			continue
		}
		if last, ok := s.base.Last(); ok && !t.TS.After(last.TS) {
			continue
		}
		s.base.Push(t)
		restored++
	}

	for _, tf := range model.DerivedTimeframes {
		d := snap.Derived[tf]
		if len(d) > s.capacity {
			d = d[len(d)-s.capacity:]
		}
		cp := make([]float64, 0, len(d))
		for _, v := range d {
			if v > 0 && !math.IsNaN(v) {
				cp = append(cp, v)
			}
		}
		s.derived[tf] = cp
	}
	return restored
}
