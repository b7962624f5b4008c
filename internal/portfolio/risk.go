package portfolio

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"alphabot/internal/model"
	"alphabot/internal/strategy"
)

// RiskLimits defines the gate's thresholds.
type RiskLimits struct {
	Cooldown   time.Duration   `json:"cooldown"`    // minimum time between trades
	TradeSize  decimal.Decimal `json:"trade_size"`  // quote amount per trade
	SellBuffer decimal.Decimal `json:"sell_buffer"` // extra base value required to sell
}

// DefaultRiskLimits returns the production limits.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		Cooldown:   30 * time.Minute,
		TradeSize:  decimal.NewFromInt(400),
		SellBuffer: decimal.NewFromInt(20),
	}
}

// Rejection reasons.
const (
	ReasonSameSide     = "same_side"
	ReasonCooldown     = "cooldown"
	ReasonInsufficient = "insufficient_balance"
)

// Verdict is the gate's answer. Mode is the action to execute: the signal's
// own type when approved, hold when rejected.
type Verdict struct {
	Mode     model.Action `json:"mode"`
	Approved bool         `json:"approved"`
	Reason   string       `json:"reason,omitempty"` // one of the Reason constants
	Detail   string       `json:"detail,omitempty"`
}

// Gate validates signals against the position and balances.
type Gate struct {
	mu     sync.RWMutex
	limits RiskLimits

	rejections map[string]int

	// OnReject is called for every rejection (optional, for metrics).
	OnReject func(reason string)
}

// NewGate creates a risk gate.
func NewGate(limits RiskLimits) *Gate {
	return &Gate{limits: limits, rejections: make(map[string]int)}
}

// Approve checks a decision engine signal. Hold passes through unchanged.
// Checks run in order: same side as the last trade, cooldown since the last
// trade, then balance sufficiency.
func (g *Gate) Approve(sig strategy.Signal, pos model.PositionState, bal model.Balances, now time.Time) Verdict {
	if !sig.Type.IsTrade() {
		return Verdict{Mode: sig.Type}
	}

	if sig.Type == pos.LastAction {
		return g.reject(sig.Type, ReasonSameSide, fmt.Sprintf("last action was already %s", pos.LastAction))
	}

	if pos.LastTrade != nil {
		if elapsed := now.Sub(pos.LastTrade.TS); elapsed < g.limits.Cooldown {
			return g.reject(sig.Type, ReasonCooldown,
				fmt.Sprintf("%s since last trade, cooldown %s", elapsed.Round(time.Second), g.limits.Cooldown))
		}
	}

	if ok, detail := g.sufficient(sig.Type, bal); !ok {
		return g.reject(sig.Type, ReasonInsufficient, detail)
	}
	return Verdict{Mode: sig.Type, Approved: true}
}

// ApproveForce checks an operator override. Only balance sufficiency
// applies.
func (g *Gate) ApproveForce(action model.Action, bal model.Balances) Verdict {
	if !action.IsTrade() {
		return Verdict{Mode: model.ActionHold, Reason: "not a trade", Detail: string(action)}
	}
	if ok, detail := g.sufficient(action, bal); !ok {
		return g.reject(action, ReasonInsufficient, detail)
	}
	return Verdict{Mode: action, Approved: true}
}

// sufficient requires quote > TradeSize to buy, and base value >
// TradeSize + SellBuffer to sell.
func (g *Gate) sufficient(action model.Action, bal model.Balances) (bool, string) {
	g.mu.RLock()
	size, buffer := g.limits.TradeSize, g.limits.SellBuffer
	g.mu.RUnlock()

	switch action {
	case model.ActionBuy:
		if !bal.Quote.GreaterThan(size) {
			return false, fmt.Sprintf("quote %s <= %s", bal.Quote.StringFixed(2), size.StringFixed(2))
		}
	case model.ActionSell:
		need := size.Add(buffer)
		if !bal.BaseValue.GreaterThan(need) {
			return false, fmt.Sprintf("base value %s <= %s", bal.BaseValue.StringFixed(2), need.StringFixed(2))
		}
	}
	return true, ""
}

func (g *Gate) reject(action model.Action, reason, detail string) Verdict {
	g.mu.Lock()
	g.rejections[reason]++
	g.mu.Unlock()

	log.Printf("[risk] %s rejected: %s (%s)", action, reason, detail)
	if g.OnReject != nil {
		g.OnReject(reason)
	}
	return Verdict{Mode: model.ActionHold, Reason: reason, Detail: detail}
}

// Limits returns the current limits.
func (g *Gate) Limits() RiskLimits {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limits
}

// GetStatus returns current risk status.
func (g *Gate) GetStatus() map[string]interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rej := make(map[string]int, len(g.rejections))
	for k, v := range g.rejections {
		rej[k] = v
	}
	return map[string]interface{}{
		"cooldown":    g.limits.Cooldown.String(),
		"trade_size":  g.limits.TradeSize.String(),
		"sell_buffer": g.limits.SellBuffer.String(),
		"rejections":  rej,
	}
}
