// Package wallet reads account balances through a narrow capability
// interface and converts them into the view the risk gate needs.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"alphabot/internal/model"
)

// ErrBalanceUnavailable is returned when any part of the balance read fails.
// Callers must not fall back to a partial or stale balance.
var ErrBalanceUnavailable = errors.New("wallet: balance unavailable")

// ErrUnknownChain is returned by clients for chains they do not hold.
var ErrUnknownChain = errors.New("wallet: unknown chain")

// Client is the settlement-network capability the engine depends on.
type Client interface {
	Address(chainID string) (string, error)
	Balance(ctx context.Context, chainID string) (decimal.Decimal, error)
}

// PriceSource yields the newest base-asset price in the quote asset.
type PriceSource interface {
	Latest() (model.Tick, bool)
}

// Oracle implements the balance oracle over a Client.
type Oracle struct {
	client     Client
	prices     PriceSource
	quoteChain string
	baseChain  string
}

// NewOracle creates an oracle reading quoteChain and baseChain from client
// and valuing the base holding at the newest price from prices.
func NewOracle(client Client, prices PriceSource, quoteChain, baseChain string) *Oracle {
	return &Oracle{client: client, prices: prices, quoteChain: quoteChain, baseChain: baseChain}
}

// GetBalances returns a consistent balance view. A chain the client does not
// hold counts as a zero balance; every other failure is wrapped in
// ErrBalanceUnavailable.
func (o *Oracle) GetBalances(ctx context.Context) (model.Balances, error) {
	quote, err := o.read(ctx, o.quoteChain)
	if err != nil {
		return model.Balances{}, err
	}
	base, err := o.read(ctx, o.baseChain)
	if err != nil {
		return model.Balances{}, err
	}

	tick, ok := o.prices.Latest()
	if !ok || tick.Price <= 0 {
		return model.Balances{}, fmt.Errorf("%w: no price to value %s", ErrBalanceUnavailable, o.baseChain)
	}
	return model.Balances{
		Quote:     quote,
		Base:      base,
		BaseValue: base.Mul(decimal.NewFromFloat(tick.Price)),
	}, nil
}

// Addresses returns the wallet address per chain for the status report.
func (o *Oracle) Addresses() map[string]string {
	out := make(map[string]string, 2)
	for _, chain := range []string{o.quoteChain, o.baseChain} {
		addr, err := o.client.Address(chain)
		if err != nil {
			log.Printf("[wallet] address %s: %v", chain, err)
			continue
		}
		out[chain] = addr
	}
	return out
}

func (o *Oracle) read(ctx context.Context, chain string) (decimal.Decimal, error) {
	bal, err := o.client.Balance(ctx, chain)
	if errors.Is(err, ErrUnknownChain) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrBalanceUnavailable, chain, err)
	}
	return bal, nil
}
