package model

import (
	"encoding/json"
	"time"
)

// Action is an executed or proposed trading action. Paused is a sentinel used
// when no trade has been executed yet or trading is externally halted.
type Action string

const (
	ActionBuy    Action = "buy"
	ActionSell   Action = "sell"
	ActionHold   Action = "hold"
	ActionPaused Action = "paused"
)

// Opposite returns the other trading side. Hold and paused have no opposite.
func (a Action) Opposite() Action {
	switch a {
	case ActionBuy:
		return ActionSell
	case ActionSell:
		return ActionBuy
	default:
		return a
	}
}

// IsTrade reports whether the action moves funds.
func (a Action) IsTrade() bool {
	return a == ActionBuy || a == ActionSell
}

// TradeRecord is the immutable record of one confirmed execution.
type TradeRecord struct {
	ID         string    `json:"id"`
	TS         time.Time `json:"ts"`
	Action     Action    `json:"action"`
	Price      float64   `json:"price"`        // 1m price at execution time
	RSIAtTrade float64   `json:"rsi_at_trade"` // latest retained RSI
	ResultRef  string    `json:"result_ref"`   // executor hash / reference
	Amount     string    `json:"amount"`       // quote-denominated size, decimal string
	Rationale  string    `json:"rationale"`
	Forced     bool      `json:"forced,omitempty"`
}

// JSON returns the JSON-encoded record (ignoring errors for logging paths).
func (t *TradeRecord) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}
