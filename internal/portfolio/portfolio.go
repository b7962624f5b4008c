// Package portfolio tracks the trading position and gates proposed trades.
//
// Position is the single source of truth for the last executed action and
// the trade history. It is written only by the evaluation loop after a
// confirmed execution; readers take value snapshots. Gate applies the
// cooldown, same-side and balance checks between a signal and the executor.
package portfolio

import (
	"fmt"
	"sync"

	"alphabot/internal/model"
)

// DefaultHistoryCap bounds the in-memory trade history.
const DefaultHistoryCap = 500

// Position holds the trade history. LastAction is paused until the first
// trade is recorded.
type Position struct {
	mu      sync.RWMutex
	cap     int
	history []model.TradeRecord
}

// NewPosition creates an empty position.
func NewPosition(capacity int) *Position {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &Position{
		cap:     capacity,
		history: make([]model.TradeRecord, 0, 64),
	}
}

// LastAction returns the side of the newest trade, or paused if none.
func (p *Position) LastAction() model.Action {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.history) == 0 {
		return model.ActionPaused
	}
	return p.history[len(p.history)-1].Action
}

// Record appends a confirmed trade. Only buy and sell records are accepted
// and timestamps may not go backwards.
func (p *Position) Record(tr model.TradeRecord) error {
	if !tr.Action.IsTrade() {
		return fmt.Errorf("portfolio: cannot record %q", tr.Action)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.history); n > 0 && tr.TS.Before(p.history[n-1].TS) {
		return fmt.Errorf("portfolio: trade %s at %s before last trade at %s",
			tr.ID, tr.TS.Format("2006-01-02 15:04:05"), p.history[n-1].TS.Format("2006-01-02 15:04:05"))
	}
	p.history = append(p.history, tr)
	if excess := len(p.history) - p.cap; excess > 0 {
		p.history = append(p.history[:0:0], p.history[excess:]...)
	}
	return nil
}

// Snapshot returns a value copy for the decision engine and risk gate.
func (p *Position) Snapshot() model.PositionState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := model.PositionState{
		LastAction: model.ActionPaused,
		History:    make([]model.TradeRecord, len(p.history)),
	}
	copy(st.History, p.history)
	if n := len(st.History); n > 0 {
		last := st.History[n-1]
		st.LastAction = last.Action
		st.LastTrade = &last
	}
	return st
}

// Seed replaces the history, e.g. with records loaded at startup. Records
// that are not trades are dropped.
func (p *Position) Seed(history []model.TradeRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.history = p.history[:0]
	for _, tr := range history {
		if tr.Action.IsTrade() {
			p.history = append(p.history, tr)
		}
	}
	if excess := len(p.history) - p.cap; excess > 0 {
		p.history = append(p.history[:0:0], p.history[excess:]...)
	}
}

// Reset clears the history; LastAction becomes paused.
func (p *Position) Reset() {
	p.mu.Lock()
	p.history = p.history[:0]
	p.mu.Unlock()
}

// Counts returns the number of recorded buys and sells.
func (p *Position) Counts() (buys, sells int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, tr := range p.history {
		switch tr.Action {
		case model.ActionBuy:
			buys++
		case model.ActionSell:
			sells++
		}
	}
	return buys, sells
}

// GainedSinceBuy returns the percent change of price over the last buy.
func (p *Position) GainedSinceBuy(price float64) (float64, bool) {
	tr, ok := p.Snapshot().Last(model.ActionBuy)
	if !ok || tr.Price == 0 || price <= 0 {
		return 0, false
	}
	return (price - tr.Price) / tr.Price * 100, true
}

// GainedSinceSell returns the percent by which price is below the last
// sell, relative to price: what re-buying now would gain.
func (p *Position) GainedSinceSell(price float64) (float64, bool) {
	tr, ok := p.Snapshot().Last(model.ActionSell)
	if !ok || price <= 0 {
		return 0, false
	}
	return (tr.Price - price) / price * 100, true
}
