package ringbuf

import (
	"testing"
	"time"

	"alphabot/internal/model"
)

func tick(min int, price float64) model.Tick {
	return model.Tick{TS: time.Unix(int64(min)*60, 0).UTC(), Price: price}
}

func TestRing_BasicPush(t *testing.T) {
	r := New(4)

	r.Push(tick(0, 100))
	r.Push(tick(1, 101))

	if r.Len() != 2 {
		t.Fatalf("expected len=2, got %d", r.Len())
	}
	last, ok := r.Last()
	if !ok || last.Price != 101 {
		t.Fatalf("expected last=101, got %v ok=%v", last.Price, ok)
	}
	if got := r.Prices(0); len(got) != 2 || got[0] != 100 || got[1] != 101 {
		t.Fatalf("unexpected prices %v", got)
	}
}

func TestRing_EvictsOldest(t *testing.T) {
	r := New(3)
	for i := 0; i < 5; i++ {
		evicted := r.Push(tick(i, float64(100+i)))
		if want := i >= 3; evicted != want {
			t.Errorf("push %d: evicted=%v, want %v", i, evicted, want)
		}
	}

	if r.Len() != 3 {
		t.Fatalf("expected len=3, got %d", r.Len())
	}
	if r.Evicted() != 2 {
		t.Fatalf("expected evicted=2, got %d", r.Evicted())
	}
	got := r.Prices(0)
	want := []float64{102, 103, 104}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("prices=%v, want %v", got, want)
		}
	}
}

func TestRing_PricesWindow(t *testing.T) {
	r := New(10)
	for i := 0; i < 7; i++ {
		r.Push(tick(i, float64(i)))
	}
	got := r.Prices(3)
	if len(got) != 3 || got[0] != 4 || got[2] != 6 {
		t.Fatalf("expected [4 5 6], got %v", got)
	}
	if all := r.Prices(50); len(all) != 7 {
		t.Fatalf("expected 7 prices for oversized window, got %d", len(all))
	}
}

func TestRing_CopyIsDetached(t *testing.T) {
	r := New(2)
	r.Push(tick(0, 1))
	got := r.Prices(0)
	got[0] = 99
	if r.At(0).Price != 1 {
		t.Fatal("mutating the returned slice must not affect the ring")
	}
}

func TestRing_Reset(t *testing.T) {
	r := New(2)
	r.Push(tick(0, 1))
	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("expected empty ring after reset, got %d", r.Len())
	}
	if _, ok := r.Last(); ok {
		t.Fatal("Last on empty ring should report false")
	}
}
