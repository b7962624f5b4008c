package model

import "github.com/shopspring/decimal"

// Balances is a consistent view of the wallet, denominated for the risk gate.
// BaseValue is the base-asset holding converted to the quote asset.
type Balances struct {
	Quote     decimal.Decimal `json:"quote"`
	Base      decimal.Decimal `json:"base"`
	BaseValue decimal.Decimal `json:"base_value"`
}
