// Package control carries the process lifecycle flag and operator commands
// (stop, forced trades, halt toggles) into the running loops.
package control

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Lifecycle is the shared stop flag. Every loop checks Stopped at the top of
// its iteration and waits on Done between iterations.
type Lifecycle struct {
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// NewLifecycle returns a running lifecycle.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{done: make(chan struct{})}
}

// Stop sets the flag. Safe to call more than once.
func (l *Lifecycle) Stop() {
	l.once.Do(func() {
		l.stopped.Store(true)
		close(l.done)
	})
}

// Stopped reports whether Stop has been called.
func (l *Lifecycle) Stopped() bool { return l.stopped.Load() }

// Done is closed on Stop.
func (l *Lifecycle) Done() <-chan struct{} { return l.done }

// Sleep waits for d or until Stop. It returns false if stopped.
func (l *Lifecycle) Sleep(d time.Duration) bool {
	if d <= 0 {
		return !l.Stopped()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-l.done:
		return false
	case <-t.C:
		return !l.Stopped()
	}
}

// Context derives a context that is cancelled on Stop or when parent ends.
func (l *Lifecycle) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-l.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
