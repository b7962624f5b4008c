package indicator

import (
	"errors"
	"testing"

	"alphabot/internal/model"
)

// periodCloses picks every k-th sample, matching the timeframe aggregator.
func periodCloses(base []float64, k int) []float64 {
	var out []float64
	for i := k - 1; i < len(base); i += k {
		out = append(out, base[i])
	}
	return out
}

func windowsFrom(base []float64) Windows {
	w := Windows{model.TF1m: base}
	for _, tf := range model.DerivedTimeframes {
		w[tf] = periodCloses(base, tf.Minutes())
	}
	return w
}

func TestEngine_Build(t *testing.T) {
	base := wave(900)
	w := windowsFrom(base)
	e := NewEngine(DefaultConfig())

	snap, err := e.Build(w, 123.4)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	m15 := w[model.TF15m]
	if snap.LastPrice != base[len(base)-1] || snap.ReferencePrice != m15[len(m15)-1] {
		t.Errorf("prices: last=%v ref=%v", snap.LastPrice, snap.ReferencePrice)
	}
	wantPct := (snap.LastPrice - snap.ReferencePrice) / snap.ReferencePrice * 100
	assertClose(t, "percent change", snap.PercentChange, wantPct, 1e-12)
	if snap.CrossRefPrice != 123.4 {
		t.Errorf("cross ref not carried: %v", snap.CrossRefPrice)
	}

	for i := range snap.MACD.Histogram {
		if snap.MACD.Histogram[i] != snap.MACD.Line[i]-snap.MACD.Signal[i] {
			t.Fatalf("histogram identity broken at %d", i)
		}
	}

	if len(snap.PSAR.Values) != len(snap.PSARCloses) || len(snap.PSARCloses) == 0 || len(snap.PSARCloses) > 72 {
		t.Errorf("psar misaligned: values=%d closes=%d", len(snap.PSAR.Values), len(snap.PSARCloses))
	}
	if len(snap.ShortRSI) == 0 || snap.RSI <= 0 || snap.RSI >= 100 {
		t.Errorf("rsi: short=%d latest=%v", len(snap.ShortRSI), snap.RSI)
	}
	for _, tf := range model.DerivedTimeframes {
		if _, ok := snap.Directions[tf]; !ok {
			t.Errorf("missing direction for %s", tf)
		}
	}
	if snap.Support > snap.Resistance {
		t.Errorf("support %v above resistance %v", snap.Support, snap.Resistance)
	}
	if e.History().Len() == 0 {
		t.Error("rsi history not updated")
	}
}

func TestEngine_Build_Deterministic(t *testing.T) {
	w := windowsFrom(wave(900))
	a, errA := NewEngine(DefaultConfig()).Build(w, 0)
	b, errB := NewEngine(DefaultConfig()).Build(w, 0)
	if errA != nil || errB != nil {
		t.Fatalf("build: %v / %v", errA, errB)
	}
	if a.RSI != b.RSI || a.SMA != b.SMA || a.EMA != b.EMA || a.MACD.LastHistogram() != b.MACD.LastHistogram() {
		t.Error("identical inputs produced different snapshots")
	}
}

func TestEngine_Build_ShortSeries(t *testing.T) {
	e := NewEngine(DefaultConfig())
	if _, err := e.Build(windowsFrom(wave(200)), 0); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
	if _, err := e.Build(Windows{}, 0); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("empty windows: expected ErrInsufficientHistory, got %v", err)
	}
}

func TestEngine_Build_FlatMarketHolds(t *testing.T) {
	flat := make([]float64, 900)
	for i := range flat {
		flat[i] = 50
	}
	_, err := NewEngine(DefaultConfig()).Build(windowsFrom(flat), 0)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("flat market: expected ErrInsufficientHistory, got %v", err)
	}
}
