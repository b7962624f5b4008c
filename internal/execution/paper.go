package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alphabot/internal/model"
	"alphabot/internal/wallet"
)

// PriceSource yields the newest price to fill at.
type PriceSource interface {
	Latest() (model.Tick, bool)
}

// PaperExecutor simulates swaps against a paper wallet at the newest price.
type PaperExecutor struct {
	mu     sync.RWMutex
	fills  []TradeResult
	wallet *wallet.Paper
	prices PriceSource

	quoteChain string
	baseChain  string

	// Simulation parameters
	slippageBps int64 // basis points of slippage (e.g., 5 = 0.05%)
}

// NewPaperExecutor creates a paper trading executor.
// slippageBps controls simulated slippage in basis points.
func NewPaperExecutor(w *wallet.Paper, prices PriceSource, quoteChain, baseChain string, slippageBps int64) *PaperExecutor {
	return &PaperExecutor{
		fills:       make([]TradeResult, 0, 64),
		wallet:      w,
		prices:      prices,
		quoteChain:  quoteChain,
		baseChain:   baseChain,
		slippageBps: slippageBps,
	}
}

// GetFills returns a snapshot of all fills.
func (p *PaperExecutor) GetFills() []TradeResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]TradeResult, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Execute swaps sizeHint worth of quote into base (buy) or base into quote
// (sell). Buys fill above the market price and sells below it by the
// configured slippage.
func (p *PaperExecutor) Execute(ctx context.Context, action model.Action, sizeHint decimal.Decimal) (TradeResult, error) {
	if err := ctx.Err(); err != nil {
		return TradeResult{}, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	if !action.IsTrade() {
		return TradeResult{}, fmt.Errorf("%w: cannot execute %q", ErrExecutionFailed, action)
	}
	if !sizeHint.IsPositive() {
		return TradeResult{}, fmt.Errorf("%w: size %s", ErrExecutionFailed, sizeHint)
	}
	tick, ok := p.prices.Latest()
	if !ok || tick.Price <= 0 {
		return TradeResult{}, fmt.Errorf("%w: no price", ErrExecutionFailed)
	}

	price := decimal.NewFromFloat(tick.Price)
	slip := price.Mul(decimal.NewFromInt(p.slippageBps)).Div(decimal.NewFromInt(10000))
	fill := price.Add(slip) // buy higher
	if action == model.ActionSell {
		fill = price.Sub(slip) // sell lower
	}
	units := sizeHint.Div(fill)

	var err error
	if action == model.ActionBuy {
		err = p.wallet.Transfer(p.quoteChain, sizeHint, p.baseChain, units)
	} else {
		err = p.wallet.Transfer(p.baseChain, units, p.quoteChain, sizeHint)
	}
	if err != nil {
		return TradeResult{}, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	fp, _ := fill.Float64()
	sp, _ := slip.Float64()
	res := TradeResult{
		Ref:       "PAPER-" + uuid.NewString(),
		Action:    action,
		Amount:    sizeHint,
		FillPrice: fp,
		Slippage:  sp,
		FilledAt:  time.Now().UTC(),
	}

	p.mu.Lock()
	p.fills = append(p.fills, res)
	p.mu.Unlock()

	log.Printf("[paper] %s %s %s @ %.2f (slip=%.4f) units=%s ref=%s",
		action, sizeHint.StringFixed(2), p.quoteChain, fp, sp, units.StringFixed(8), res.Ref)
	return res, nil
}
