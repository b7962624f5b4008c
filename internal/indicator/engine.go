package indicator

import (
	"fmt"

	"alphabot/internal/model"
)

// Config holds the engine's periods and reversal-scan settings.
type Config struct {
	MAPeriod    int `yaml:"ma_period"`    // SMA/EMA period over 15m
	PSARBars    int `yaml:"psar_bars"`    // newest 15m bars fed to the SAR
	SwingWindow int `yaml:"swing_window"` // 1m samples per swing high/low window

	PriceReversalThreshold float64 `yaml:"price_reversal_threshold"`
	PriceReversalLookback  int     `yaml:"price_reversal_lookback"`
	RSIReversalThreshold   float64 `yaml:"rsi_reversal_threshold"`
	RSIReversalLookback    int     `yaml:"rsi_reversal_lookback"`

	RecentRSI  int `yaml:"recent_rsi"` // cumulative RSI values carried in the snapshot
	HistoryCap int `yaml:"history_cap"`
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		MAPeriod:               15,
		PSARBars:               72,
		SwingWindow:            15,
		PriceReversalThreshold: 0.0001,
		PriceReversalLookback:  30,
		RSIReversalThreshold:   0.01,
		RSIReversalLookback:    6,
		RecentRSI:              48,
		HistoryCap:             DefaultHistoryCap,
	}
}

// Windows maps each timeframe to a copy of its series, oldest first.
type Windows map[model.Timeframe][]float64

// Engine builds snapshots. The only state it keeps across cycles is the
// cumulative RSI record.
type Engine struct {
	cfg     Config
	history *RSIHistory
}

// NewEngine creates an indicator engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, history: NewRSIHistory(cfg.HistoryCap)}
}

// History exposes the cumulative RSI record.
func (e *Engine) History() *RSIHistory { return e.history }

// Build computes every indicator for one cycle. crossRef is an external
// reference price for the same asset, 0 when unavailable. Any indicator
// lacking data fails the whole build with ErrInsufficientHistory.
func (e *Engine) Build(w Windows, crossRef float64) (Snapshot, error) {
	m1, m5, m15 := w[model.TF1m], w[model.TF5m], w[model.TF15m]
	if len(m1) == 0 || len(m15) == 0 {
		return Snapshot{}, fmt.Errorf("%w: 1m=%d 15m=%d", ErrInsufficientHistory, len(m1), len(m15))
	}

	rsi15, err := RSISeries(m15)
	if err != nil {
		return Snapshot{}, fmt.Errorf("rsi 15m: %w", err)
	}
	e.history.Merge(rsi15)
	latestRSI, err := e.history.Latest()
	if err != nil {
		return Snapshot{}, fmt.Errorf("rsi history: %w", err)
	}

	shortRSI, err := RSISeries(m5)
	if err != nil {
		return Snapshot{}, fmt.Errorf("rsi 5m: %w", err)
	}
	if len(shortRSI) == 0 {
		return Snapshot{}, fmt.Errorf("rsi 5m: %w", ErrInsufficientHistory)
	}

	macd, err := MACD(m15)
	if err != nil {
		return Snapshot{}, fmt.Errorf("macd 15m: %w", err)
	}

	sma := SMASeries(m15, e.cfg.MAPeriod)
	ema := EMASeries(m15, e.cfg.MAPeriod)
	if len(sma) == 0 || len(ema) == 0 {
		return Snapshot{}, fmt.Errorf("ma 15m: %w", ErrInsufficientHistory)
	}

	highs, lows, closes := sarInputs(m1, m15, e.cfg.SwingWindow, e.cfg.PSARBars)
	psar, err := ParabolicSAR(highs, lows, closes)
	if err != nil {
		return Snapshot{}, fmt.Errorf("psar: %w", err)
	}

	lastPrice, refPrice := last(m1), last(m15)
	snap := Snapshot{
		LastPrice:      lastPrice,
		ReferencePrice: refPrice,
		PercentChange:  (lastPrice - refPrice) / refPrice * 100,
		CrossRefPrice:  crossRef,

		MACD:      macd,
		RSI:       latestRSI,
		RSIRecent: e.history.Recent(e.cfg.RecentRSI),
		ShortRSI:  shortRSI,

		SMA: last(sma),
		EMA: last(ema),

		PSAR:       psar,
		PSARCloses: closes,

		Top:       DetectTop(m5, e.cfg.PriceReversalThreshold, e.cfg.PriceReversalLookback),
		Bottom:    DetectBottom(m5, e.cfg.PriceReversalThreshold, e.cfg.PriceReversalLookback),
		RSITop:    DetectTop(shortRSI, e.cfg.RSIReversalThreshold, e.cfg.RSIReversalLookback),
		RSIBottom: DetectBottom(shortRSI, e.cfg.RSIReversalThreshold, e.cfg.RSIReversalLookback),

		Directions: map[model.Timeframe]Direction{
			model.TF5m:  DetermineDirection(m5, tail(m1, 5)),
			model.TF15m: DetermineDirection(m15, tail(m5, 3)),
			model.TF30m: DetermineDirection(w[model.TF30m], tail(m15, 2)),
			model.TF1h:  DetermineDirection(w[model.TF1h], tail(w[model.TF30m], 2)),
		},
	}

	sar, _ := psar.Last()
	snap.BullishTrend = sar < snap.SMA && sar < snap.EMA
	snap.BearishTrend = sar > snap.SMA && sar > snap.EMA
	snap.Support = min(snap.SMA, snap.EMA)
	snap.Resistance = max(snap.SMA, snap.EMA)
	return snap, nil
}

// sarInputs aligns the newest 15m closes (at most bars) with the swing highs/lows of
// the 1m series from the newest end, and clamps each bar so that
// low <= close <= high.
func sarInputs(m1, m15 []float64, window, bars int) (highs, lows, closes []float64) {
	sh, sl := SwingHighLow(m1, window)
	c := tail(m15, bars)
	n := min(len(c), len(sh))

	c, sh, sl = tail(c, n), tail(sh, n), tail(sl, n)
	highs = make([]float64, n)
	lows = make([]float64, n)
	closes = make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = c[i]
		highs[i] = max(sh[i], c[i])
		lows[i] = min(sl[i], c[i])
	}
	return highs, lows, closes
}
