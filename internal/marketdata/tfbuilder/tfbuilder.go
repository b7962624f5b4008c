// Package tfbuilder derives the coarser timeframe series (5m, 15m, 30m, 1h)
// from the 1m base series held in a series.Store.
//
// Period close is approximated by position, not by wall-clock bucket: the
// K-minute series takes every base sample whose 1-based index is a multiple of
// K. A dropped base tick therefore shifts every later boundary by one sample.
// Each derived timeframe is owned by exactly one goroutine, which is the only
// writer of that series.
package tfbuilder

import (
	"context"
	"log"
	"sync"
	"time"

	"alphabot/internal/model"
	"alphabot/internal/series"
)

// Derive returns the values to append to a K-period derived series given the
// full base series. An empty derived series is seeded with every period-close
// sample; otherwise only the newest period-close sample is returned, and only
// when it differs from the derived tail, so re-deriving an unchanged base
// appends nothing.
func Derive(base, derived []float64, k int) []float64 {
	if k <= 0 || len(base) < k {
		return nil
	}
	if len(derived) == 0 {
		out := make([]float64, 0, len(base)/k)
		for i := k - 1; i < len(base); i += k {
			out = append(out, base[i])
		}
		return out
	}
	n := len(base)
	last := base[n-1-(n%k)]
	if last == derived[len(derived)-1] {
		return nil
	}
	return []float64{last}
}

// Builder runs one derivation loop per derived timeframe.
type Builder struct {
	store        *series.Store
	tfs          []model.Timeframe
	baseInterval time.Duration

	// Metrics hooks
	OnAppend func(tf model.Timeframe, n int) // called after values are appended (optional)
	OnError  func(tf model.Timeframe, err error)
}

// New creates a builder for the given timeframes. baseInterval is the cadence
// of the base series; timeframe K runs every K × baseInterval.
func New(store *series.Store, tfs []model.Timeframe, baseInterval time.Duration) *Builder {
	if len(tfs) == 0 {
		tfs = model.DerivedTimeframes
	}
	if baseInterval <= 0 {
		baseInterval = time.Minute
	}
	return &Builder{store: store, tfs: tfs, baseInterval: baseInterval}
}

// Step performs one derivation for tf and returns the number of values appended.
func (b *Builder) Step(tf model.Timeframe) (int, error) {
	k := tf.Minutes()
	n, err := b.store.UpdateDerived(tf, func(base, derived []float64) []float64 {
		return Derive(base, derived, k)
	})
	if err != nil {
		if b.OnError != nil {
			b.OnError(tf, err)
		}
		return 0, err
	}
	if n > 0 && b.OnAppend != nil {
		b.OnAppend(tf, n)
	}
	return n, nil
}

// Run starts the per-timeframe loops and blocks until ctx is cancelled and
// every loop has returned.
func (b *Builder) Run(ctx context.Context) {
	log.Printf("[tfbuilder] starting %d aggregators (base=%s, period close by sample index)", len(b.tfs), b.baseInterval)

	var wg sync.WaitGroup
	for _, tf := range b.tfs {
		wg.Add(1)
		go func(tf model.Timeframe) {
			defer wg.Done()
			b.runTF(ctx, tf)
		}(tf)
	}
	wg.Wait()
	log.Printf("[tfbuilder] stopped")
}

func (b *Builder) runTF(ctx context.Context, tf model.Timeframe) {
	interval := time.Duration(tf.Minutes()) * b.baseInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if n, err := b.Step(tf); err != nil {
			log.Printf("[tfbuilder] %s: %v", tf, err)
		} else if n > 0 {
			log.Printf("[tfbuilder] %s: +%d (len=%d)", tf, n, b.store.Len(tf))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
