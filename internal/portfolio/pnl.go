package portfolio

import (
	"sync"

	"github.com/shopspring/decimal"

	"alphabot/internal/model"
)

// PnLTracker tracks realized and unrealized P&L in the quote asset.
// A buy opens (or adds to) the position at the trade price; a sell closes
// it, realizing amount × (sell/avg − 1).
type PnLTracker struct {
	mu sync.RWMutex

	realized decimal.Decimal
	trades   int

	// Open position cost basis
	openAmount decimal.Decimal // quote spent
	avgPrice   decimal.Decimal
}

// NewPnLTracker creates a new P&L tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{}
}

// RecordTrade records a trade and returns the P&L it realized.
func (p *PnLTracker) RecordTrade(tr model.TradeRecord) decimal.Decimal {
	amount, err := decimal.NewFromString(tr.Amount)
	if err != nil || tr.Price <= 0 {
		return decimal.Zero
	}
	price := decimal.NewFromFloat(tr.Price)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.trades++

	if tr.Action == model.ActionBuy {
		if p.openAmount.IsZero() {
			p.avgPrice = price
		} else {
			// Weighted by quote spent: units = amount / price
			units := p.openAmount.Div(p.avgPrice).Add(amount.Div(price))
			p.avgPrice = p.openAmount.Add(amount).Div(units)
		}
		p.openAmount = p.openAmount.Add(amount)
		return decimal.Zero
	}

	if p.openAmount.IsZero() {
		return decimal.Zero
	}
	closed := decimal.Min(amount, p.openAmount)
	realized := closed.Mul(price.Div(p.avgPrice).Sub(decimal.NewFromInt(1)))
	p.realized = p.realized.Add(realized)
	p.openAmount = p.openAmount.Sub(closed)
	if p.openAmount.IsZero() {
		p.avgPrice = decimal.Zero
	}
	return realized
}

// GetRealizedPnL returns total realized P&L.
func (p *PnLTracker) GetRealizedPnL() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realized
}

// GetUnrealizedPnL values the open position at price.
func (p *PnLTracker) GetUnrealizedPnL(price float64) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unrealized(price)
}

func (p *PnLTracker) unrealized(price float64) decimal.Decimal {
	if p.openAmount.IsZero() || price <= 0 {
		return decimal.Zero
	}
	return p.openAmount.Mul(decimal.NewFromFloat(price).Div(p.avgPrice).Sub(decimal.NewFromInt(1)))
}

// PnLSummary is the P&L view exposed on the status endpoint.
type PnLSummary struct {
	RealizedPnL   string `json:"realized_pnl"`
	UnrealizedPnL string `json:"unrealized_pnl"`
	TotalPnL      string `json:"total_pnl"`
	TotalTrades   int    `json:"total_trades"`
	OpenAmount    string `json:"open_amount"`
}

// GetSummary returns the current P&L summary.
func (p *PnLTracker) GetSummary(price float64) PnLSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u := p.unrealized(price)
	return PnLSummary{
		RealizedPnL:   p.realized.StringFixed(2),
		UnrealizedPnL: u.StringFixed(2),
		TotalPnL:      p.realized.Add(u).StringFixed(2),
		TotalTrades:   p.trades,
		OpenAmount:    p.openAmount.StringFixed(2),
	}
}
