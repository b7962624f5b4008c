package strategy

import (
	"fmt"
	"math"

	"alphabot/internal/indicator"
	"alphabot/internal/model"
)

// seekBuy runs the ladder after a sell.
func (e *Engine) seekBuy(s indicator.Snapshot, pos model.PositionState) Signal {
	flags := e.buyFlags(s)
	dir := s.Direction(model.TF5m)

	if e.flash(s, indicator.TrendRising) {
		return Signal{Type: model.ActionBuy, Rationale: "flash buy signal", Flags: flags}
	}
	if s.PercentChange <= -e.cfg.DropPct && s.RSI <= e.cfg.OversoldRSI {
		return Signal{
			Type:      model.ActionBuy,
			Rationale: fmt.Sprintf("sudden price drop detected (%.2f%% decrease), last price %.2f", s.PercentChange, s.LastPrice),
			Flags:     flags,
		}
	}
	if s.Bottom.IsTrendReversal && s.RSIBottom.IsTrendReversal &&
		dir != indicator.Downward && dir != indicator.Stable &&
		s.ShortRSILast() <= e.cfg.ShortRSICeiling &&
		e.crossRefAgrees(s, pos) {
		return Signal{Type: model.ActionBuy, Rationale: "price approaching support level and bottom detected", Flags: flags}
	}
	return hold(dir, flags)
}

// seekSell runs the ladder after a buy.
func (e *Engine) seekSell(s indicator.Snapshot, pos model.PositionState) Signal {
	flags := e.sellFlags(s)
	dir := s.Direction(model.TF5m)
	entry, long := pos.EntryPrice()

	if e.flash(s, indicator.TrendFalling) {
		return Signal{Type: model.ActionSell, Rationale: "flash sell signal", Flags: flags}
	}
	if s.PercentChange >= e.cfg.JumpPct && s.RSI >= e.cfg.OverboughtRSI {
		return Signal{
			Type:      model.ActionSell,
			Rationale: fmt.Sprintf("sudden price jump detected (%.2f%% increase), last price %.2f", s.PercentChange, s.LastPrice),
			Flags:     flags,
		}
	}
	if sar, _ := s.SAR(); long && sar > 0 && (s.LastPrice-sar)/sar*100 <= -e.cfg.StopLossPct {
		return Signal{
			Type:      model.ActionSell,
			Rationale: fmt.Sprintf("stop loss triggered (%.2f%% below SAR), last price %.2f", e.cfg.StopLossPct, s.LastPrice),
			Flags:     flags,
		}
	}
	if s.Top.IsTrendReversal && s.RSITop.IsTrendReversal &&
		dir != indicator.Upward && dir != indicator.Stable &&
		s.RSI >= e.cfg.SellRSIFloor &&
		long && s.LastPrice > entry {
		return Signal{Type: model.ActionSell, Rationale: "price approaching resistance level and top detected", Flags: flags}
	}
	return hold(dir, flags)
}

// fromPaused waits for a MACD crossover confirmed by the 1m vs 15m move.
func (e *Engine) fromPaused(s indicator.Snapshot) Signal {
	var flags Flags
	if s.RSI < 50 {
		flags = e.buyFlags(s)
	} else {
		flags = e.sellFlags(s)
	}
	move := math.Abs(s.PercentChange) >= e.cfg.CrossoverMovePct

	switch {
	case s.MACD.BearishCrossover() && s.PercentChange < 0 && move:
		return Signal{Type: model.ActionSell, Rationale: "bearish MACD crossover", Flags: flags}
	case s.MACD.BullishCrossover() && s.PercentChange > 0 && move:
		return Signal{Type: model.ActionBuy, Rationale: "bullish MACD crossover", Flags: flags}
	}
	return hold(s.Direction(model.TF5m), flags)
}

// flash reports that every one of the newest FlashLookback SAR bars carries
// trend and sits on the matching side of its close: above for a falling
// trend, below for a rising one.
func (e *Engine) flash(s indicator.Snapshot, trend indicator.Trend) bool {
	n := min(len(s.PSAR.Values), len(s.PSAR.Trends), len(s.PSARCloses))
	if n < e.cfg.FlashLookback {
		return false
	}
	for i := n - e.cfg.FlashLookback; i < n; i++ {
		if s.PSAR.Trends[i] != trend {
			return false
		}
		sar, px := s.PSAR.Values[i], s.PSARCloses[i]
		if trend == indicator.TrendFalling && sar <= px {
			return false
		}
		if trend == indicator.TrendRising && sar >= px {
			return false
		}
	}
	return true
}

// crossRefAgrees checks the local price against the external reference.
// The check is skipped when no reference price is available.
func (e *Engine) crossRefAgrees(s indicator.Snapshot, pos model.PositionState) bool {
	if s.CrossRefPrice <= 0 {
		return true
	}
	denom := s.LastPrice
	if pos.LastTrade != nil && pos.LastTrade.Price > 0 {
		denom = pos.LastTrade.Price
	}
	diff := math.Abs(s.LastPrice-s.CrossRefPrice) / denom * 100
	return diff <= e.cfg.CrossRefTolerancePct
}

func (e *Engine) buyFlags(s indicator.Snapshot) Flags {
	return Flags{
		MACD:      s.MACD.ConfirmedBullishCrossover(),
		RSI:       indicator.RSIBuySignal(s.RSIRecent, e.cfg.RSISignalPeriod, e.cfg.OversoldRSI),
		Histogram: s.MACD.LastHistogram() > 0,
	}
}

func (e *Engine) sellFlags(s indicator.Snapshot) Flags {
	return Flags{
		MACD:      s.MACD.ConfirmedBearishCrossover(),
		RSI:       indicator.RSISellSignal(s.RSIRecent, e.cfg.RSISignalPeriod, e.cfg.OverboughtRSI),
		Histogram: s.MACD.LastHistogram() < 0,
	}
}

func hold(dir indicator.Direction, flags Flags) Signal {
	return Signal{Type: model.ActionHold, Rationale: "no clear trading signal, " + string(dir), Flags: flags}
}
