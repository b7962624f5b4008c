// Package execution performs approved trades and journals them.
//
// An Executor is only called after the risk gate approved an action. A
// failed execution is surfaced to the operator and never recorded as a
// trade; retrying is the operator's decision.
package execution

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"alphabot/internal/model"
)

// ErrExecutionFailed wraps every executor failure.
var ErrExecutionFailed = errors.New("execution: failed")

// TradeResult represents the outcome of an executed trade.
type TradeResult struct {
	Ref       string          `json:"ref"` // settlement hash or reference
	Action    model.Action    `json:"action"`
	Amount    decimal.Decimal `json:"amount"` // quote amount
	FillPrice float64         `json:"fill_price"`
	Slippage  float64         `json:"slippage"`
	FilledAt  time.Time       `json:"filled_at"`
}

// Executor performs buy and sell actions. sizeHint is the quote amount.
type Executor interface {
	Execute(ctx context.Context, action model.Action, sizeHint decimal.Decimal) (TradeResult, error)
}
