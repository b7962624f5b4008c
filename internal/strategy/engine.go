// Package strategy turns an indicator snapshot and the current position into
// a trading signal.
//
// The rule ladder is keyed on the last executed action: after a sell it only
// looks for a buy, after a buy only for a sell, and with no trade yet (or
// after a halt) it waits for a MACD crossover. Rules are checked in a fixed
// order and the first match wins. Evaluation is pure: no clock, no I/O and
// no state, so identical inputs always give an identical Signal.
package strategy

import (
	"alphabot/internal/indicator"
	"alphabot/internal/model"
)

// Signal is the output of one evaluation.
type Signal struct {
	Type      model.Action `json:"type"` // buy, sell or hold
	Rationale string       `json:"rationale"`
	Flags     Flags        `json:"flags"`
}

// Flags are component confirmations computed for the side being sought.
// They are reported but do not gate the decision.
type Flags struct {
	MACD      bool `json:"macd"`      // confirmed 3-bar MACD crossover
	RSI       bool `json:"rsi"`       // RSI threshold re-entry within the signal period
	Histogram bool `json:"histogram"` // histogram sign agrees with the side
}

// Strategy is implemented by decision engines.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Evaluate returns the signal for one cycle.
	Evaluate(snap indicator.Snapshot, pos model.PositionState) Signal
}

// Config holds the rule thresholds. Percentages are in percent units.
type Config struct {
	DropPct     float64 `yaml:"drop_pct"`      // sudden drop, buy side
	JumpPct     float64 `yaml:"jump_pct"`      // sudden jump, sell side
	StopLossPct float64 `yaml:"stop_loss_pct"` // price below SAR while long

	OversoldRSI     float64 `yaml:"oversold_rsi"`
	OverboughtRSI   float64 `yaml:"overbought_rsi"`
	ShortRSICeiling float64 `yaml:"short_rsi_ceiling"` // buy reversal: 5m RSI at or below
	SellRSIFloor    float64 `yaml:"sell_rsi_floor"`    // sell reversal: RSI at or above

	CrossRefTolerancePct float64 `yaml:"cross_ref_tolerance_pct"`
	FlashLookback        int     `yaml:"flash_lookback"`     // SAR bars that must agree
	CrossoverMovePct     float64 `yaml:"crossover_move_pct"` // minimum move confirming a crossover
	RSISignalPeriod      int     `yaml:"rsi_signal_period"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		DropPct:              5,
		JumpPct:              5,
		StopLossPct:          1,
		OversoldRSI:          30,
		OverboughtRSI:        70,
		ShortRSICeiling:      50,
		SellRSIFloor:         60,
		CrossRefTolerancePct: 0.5,
		FlashLookback:        6,
		CrossoverMovePct:     0,
		RSISignalPeriod:      24,
	}
}

// Engine is the rule-ladder strategy.
type Engine struct {
	cfg Config
}

// NewEngine creates a rule-ladder engine.
func NewEngine(cfg Config) *Engine {
	if cfg.FlashLookback <= 0 {
		cfg.FlashLookback = 1
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Name() string { return "rule_ladder" }

// Config returns the thresholds in use.
func (e *Engine) Config() Config { return e.cfg }

// Evaluate dispatches on the last executed action.
func (e *Engine) Evaluate(snap indicator.Snapshot, pos model.PositionState) Signal {
	switch pos.LastAction {
	case model.ActionSell:
		return e.seekBuy(snap, pos)
	case model.ActionBuy:
		return e.seekSell(snap, pos)
	default:
		return e.fromPaused(snap)
	}
}
