package model

import "time"

// PositionState is a read-only view of the trading position used by the
// decision engine and risk gate. LastTrade is nil when no trade exists.
type PositionState struct {
	LastAction Action        `json:"last_action"`
	LastTrade  *TradeRecord  `json:"last_trade,omitempty"`
	History    []TradeRecord `json:"history"`
}

// EntryPrice returns the price of the most recent buy when the position is
// currently long (last action was a buy).
func (p PositionState) EntryPrice() (float64, bool) {
	if p.LastAction != ActionBuy || p.LastTrade == nil {
		return 0, false
	}
	return p.LastTrade.Price, true
}

// LastTradeAt returns the timestamp of the last trade, zero if none.
func (p PositionState) LastTradeAt() time.Time {
	if p.LastTrade == nil {
		return time.Time{}
	}
	return p.LastTrade.TS
}

// Last returns the most recent trade of the given side.
func (p PositionState) Last(a Action) (TradeRecord, bool) {
	for i := len(p.History) - 1; i >= 0; i-- {
		if p.History[i].Action == a {
			return p.History[i], true
		}
	}
	return TradeRecord{}, false
}
