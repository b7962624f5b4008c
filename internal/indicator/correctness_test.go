package indicator

import (
	"errors"
	"math"
	"testing"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// wave is a deterministic non-monotonic price path.
func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 0.05*float64(i) + 3*math.Sin(float64(i)/4) + math.Cos(float64(i)/1.7)
	}
	return out
}

func alternating(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 10 + float64(i%2)
	}
	return out
}

// ────────────────────────────────────────────────────────────
// SMA / EMA / SMMA
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// (100+102+104)/3 = 102, (102+104+103)/3 = 103, (104+103+105)/3 = 104
	got := SMASeries([]float64{100, 102, 104, 103, 105}, 3)
	want := []float64{102, 103, 104}
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		assertClose(t, "SMA(3)", got[i], want[i], 0.0001)
	}
}

func TestSMA_ShorterThanPeriod(t *testing.T) {
	if got := SMASeries([]float64{1, 2}, 3); len(got) != 0 {
		t.Errorf("expected no values, got %v", got)
	}
}

func TestEMA_Correctness_Period3(t *testing.T) {
	// Seed = SMA(10,11,12) = 11; multiplier = 0.5
	// 13 → 13*0.5 + 11*0.5 = 12; 14 → 14*0.5 + 12*0.5 = 13
	got := EMASeries([]float64{10, 11, 12, 13, 14}, 3)
	want := []float64{11, 12, 13}
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		assertClose(t, "EMA(3)", got[i], want[i], 0.0001)
	}
}

func TestEMA_MoreResponsiveThanSMA(t *testing.T) {
	series := make([]float64, 0, 30)
	for i := 0; i < 20; i++ {
		series = append(series, 100)
	}
	for i := 0; i < 10; i++ {
		series = append(series, 120)
	}
	sma := SMASeries(series, 10)
	ema := EMASeries(series, 10)
	// After the jump, EMA approaches 120 faster until SMA's window is full of 120s.
	if ema[len(ema)-5] <= sma[len(sma)-5] {
		t.Errorf("EMA should lead SMA after a step: ema=%.4f sma=%.4f", ema[len(ema)-5], sma[len(sma)-5])
	}
}

func TestSMMA_RunningMeanThenWilder(t *testing.T) {
	s := NewSMMA(3)
	want := []float64{1, 1.5, 2, 8.0 / 3}
	for i, p := range []float64{1, 2, 3, 4} {
		s.Update(p)
		assertClose(t, "SMMA(3)", s.Value(), want[i], 0.0001)
	}
	if !s.Warm() {
		t.Error("expected warm after period values")
	}
	s.Reset()
	if s.Ready() {
		t.Error("expected not ready after reset")
	}
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_InsufficientHistory(t *testing.T) {
	_, err := RSISeries(wave(13))
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestRSI_FlatSeriesFiltersEverything(t *testing.T) {
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 42
	}
	got, err := RSISeries(flat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestRSI_MonotonicFiltersEverything(t *testing.T) {
	up := make([]float64, 20)
	down := make([]float64, 20)
	for i := range up {
		up[i] = float64(100 + i)
		down[i] = float64(100 - i)
	}
	for name, s := range map[string][]float64{"up": up, "down": down} {
		got, err := RSISeries(s)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(got) != 0 {
			t.Errorf("%s: expected all values filtered, got %v", name, got)
		}
	}
}

func TestRSI_RunningMeanWarmup(t *testing.T) {
	// Deltas alternate +1, -1. The first delta alone gives RSI 100 (dropped).
	// k=2: 0.5/0.5 → 50; k=3: (2/3)/(1/3) → 66.6667; k=5: 0.6/0.4 → 60.
	got, err := RSISeries(alternating(14))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 12 {
		t.Fatalf("expected 12 values, got %d: %v", len(got), got)
	}
	assertClose(t, "k=2", got[0], 50, 0.0001)
	assertClose(t, "k=3", got[1], 66.6667, 0.0001)
	assertClose(t, "k=5", got[3], 60, 0.0001)
}

func TestRSI_WilderAfterWarmup(t *testing.T) {
	// After 14 deltas avgGain = avgLoss = 0.5. Delta 15 is +1:
	// gain = (0.5*13+1)/14, loss = (0.5*13)/14 → RSI = 53.5714
	got, err := RSISeries(alternating(16))
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "k=15", got[len(got)-1], 53.5714, 0.0001)
}

func TestRSI_NeverEmitsSentinels(t *testing.T) {
	inputs := [][]float64{wave(200), alternating(50)}
	for _, in := range inputs {
		got, err := RSISeries(in)
		if err != nil {
			t.Fatal(err)
		}
		for i, v := range got {
			if v <= 0 || v >= 100 || math.IsNaN(v) {
				t.Fatalf("idx %d: sentinel or out-of-range RSI %v", i, v)
			}
		}
	}
}

// ────────────────────────────────────────────────────────────
// MACD
// ────────────────────────────────────────────────────────────

func TestMACD_HistogramIdentity(t *testing.T) {
	for _, n := range []int{34, 50, 300} {
		m, err := MACD(wave(n))
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(m.Line) != n-33 || len(m.Signal) != len(m.Line) || len(m.Histogram) != len(m.Line) {
			t.Fatalf("n=%d: misaligned lengths line=%d signal=%d hist=%d", n, len(m.Line), len(m.Signal), len(m.Histogram))
		}
		for i := range m.Histogram {
			if m.Histogram[i] != m.Line[i]-m.Signal[i] {
				t.Fatalf("n=%d idx %d: hist %v != line-signal %v", n, i, m.Histogram[i], m.Line[i]-m.Signal[i])
			}
		}
	}
}

func TestMACD_InsufficientHistory(t *testing.T) {
	if _, err := MACD(wave(33)); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestMACD_Crossovers(t *testing.T) {
	bull := MACDResult{Line: []float64{-2, -1, 1}, Signal: []float64{0, 0, 0}}
	if !bull.BullishCrossover() || !bull.ConfirmedBullishCrossover() {
		t.Error("expected confirmed bullish crossover")
	}
	if bull.BearishCrossover() {
		t.Error("unexpected bearish crossover")
	}

	bear := MACDResult{Line: []float64{-1, 1, -1}, Signal: []float64{0, 0, 0}}
	if !bear.BearishCrossover() {
		t.Error("expected bearish crossover")
	}
	if bear.ConfirmedBearishCrossover() {
		t.Error("line was below signal two bars back, crossover is not confirmed")
	}

	short := MACDResult{Line: []float64{1}, Signal: []float64{0}}
	if short.BullishCrossover() || short.BearishCrossover() {
		t.Error("single bar cannot cross")
	}
}

// ────────────────────────────────────────────────────────────
// Parabolic SAR
// ────────────────────────────────────────────────────────────

func TestPSAR_RisingThenReversal(t *testing.T) {
	var highs, lows, closes []float64
	for i := 0; i < 10; i++ {
		c := 100 + float64(i)
		highs = append(highs, c+0.5)
		lows = append(lows, c-0.5)
		closes = append(closes, c)
	}
	// Collapse below the trailing stop.
	highs = append(highs, 95)
	lows = append(lows, 90)
	closes = append(closes, 92)

	p, err := ParabolicSAR(highs, lows, closes)
	if err != nil {
		t.Fatal(err)
	}
	if p.Trends[0] != TrendStable {
		t.Errorf("bar 0: expected stable, got %v", p.Trends[0])
	}
	for i := 1; i < 10; i++ {
		if p.Trends[i] != TrendRising {
			t.Fatalf("bar %d: expected rising, got %v", i, p.Trends[i])
		}
		if p.Values[i] > lows[i] {
			t.Fatalf("bar %d: rising SAR %v above low %v", i, p.Values[i], lows[i])
		}
	}
	sar, trend := p.Last()
	if trend != TrendFalling {
		t.Fatalf("expected falling after collapse, got %v", trend)
	}
	if sar <= closes[len(closes)-1] {
		t.Errorf("falling SAR %v should sit above price %v", sar, closes[len(closes)-1])
	}
}

func TestPSAR_InsufficientHistory(t *testing.T) {
	if _, err := ParabolicSAR([]float64{1}, []float64{1}, []float64{1}); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

// ────────────────────────────────────────────────────────────
// Swings, reversals, direction
// ────────────────────────────────────────────────────────────

func TestSwingHighLow(t *testing.T) {
	highs, lows := SwingHighLow([]float64{1, 5, 3, 2, 8, 4, 9}, 3)
	if len(highs) != 2 || highs[0] != 5 || highs[1] != 8 {
		t.Errorf("highs: got %v", highs)
	}
	if len(lows) != 2 || lows[0] != 1 || lows[1] != 2 {
		t.Errorf("lows: got %v", lows)
	}
}

func TestDetectTop(t *testing.T) {
	// Newest-first scan: 11 is the first max, then 12 replaces it (+9%).
	top := DetectTop([]float64{12, 10, 11}, 0.05, 30)
	if top.Value != 12 || top.Index != 0 || !top.IsTrendReversal {
		t.Errorf("expected reversal top 12@0, got %+v", top)
	}

	// Newest value is the max: only one update, no reversal.
	top = DetectTop([]float64{1, 2, 3, 4, 5}, 0.05, 5)
	if top.Value != 5 || top.Index != 4 || top.IsTrendReversal {
		t.Errorf("expected non-reversal top 5@4, got %+v", top)
	}

	// Below threshold.
	top = DetectTop([]float64{11.01, 10, 11}, 0.05, 3)
	if top.IsTrendReversal {
		t.Errorf("0.09%% move should not flag, got %+v", top)
	}
}

func TestDetectBottom(t *testing.T) {
	b := DetectBottom([]float64{8, 10, 9}, 0.05, 30)
	if b.Value != 8 || b.Index != 0 || !b.IsTrendReversal {
		t.Errorf("expected reversal bottom 8@0, got %+v", b)
	}

	// Lookback excludes the older low.
	b = DetectBottom([]float64{8, 10, 9}, 0.05, 2)
	if b.Value != 9 || b.IsTrendReversal {
		t.Errorf("expected 9 without reversal, got %+v", b)
	}

	if empty := DetectBottom(nil, 0.05, 6); empty.Index != -1 || empty.IsTrendReversal {
		t.Errorf("empty input: got %+v", empty)
	}
}

func TestDetermineDirection(t *testing.T) {
	cases := []struct {
		name           string
		coarse, recent []float64
		want           Direction
	}{
		{"coarse up", []float64{1, 2}, []float64{5, 4}, Upward},
		{"coarse down", []float64{2, 1}, []float64{4, 5}, Downward},
		{"equal falls back up", []float64{2, 2}, []float64{1, 3}, Upward},
		{"equal falls back down", []float64{2, 2}, []float64{3, 1}, Downward},
		{"all flat", []float64{2, 2}, []float64{3, 3}, Stable},
		{"no data", nil, nil, Stable},
	}
	for _, tc := range cases {
		if got := DetermineDirection(tc.coarse, tc.recent); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestRSIThresholdSignals(t *testing.T) {
	if !RSIBuySignal([]float64{25, 32, 28}, 24, 30) {
		t.Error("expected buy signal")
	}
	if RSIBuySignal([]float64{35, 25, 32, 28}, 24, 30) {
		t.Error("short history starting above threshold must not signal")
	}
	if RSIBuySignal([]float64{25, 32, 31}, 24, 30) {
		t.Error("newest above threshold must not signal")
	}
	if !RSISellSignal([]float64{75, 68, 72}, 24, 70) {
		t.Error("expected sell signal")
	}
	if RSISellSignal([]float64{75, 72}, 24, 70) {
		t.Error("no crossing, no signal")
	}
}
