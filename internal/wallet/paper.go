package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Paper is an in-memory wallet for paper trading. It satisfies Client.
type Paper struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
	address  string
}

// NewPaper creates a paper wallet with the given starting balances.
func NewPaper(initial map[string]decimal.Decimal) *Paper {
	b := make(map[string]decimal.Decimal, len(initial))
	for k, v := range initial {
		b[k] = v
	}
	return &Paper{balances: b, address: "paper-" + uuid.NewString()[:8]}
}

func (p *Paper) Address(chainID string) (string, error) {
	return p.address + "/" + chainID, nil
}

func (p *Paper) Balance(_ context.Context, chainID string) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	bal, ok := p.balances[chainID]
	if !ok {
		return decimal.Zero, ErrUnknownChain
	}
	return bal, nil
}

// Transfer atomically debits from and credits to. It fails without changes
// when from holds less than debit.
func (p *Paper) Transfer(from string, debit decimal.Decimal, to string, credit decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	have := p.balances[from]
	if have.LessThan(debit) {
		return fmt.Errorf("paper wallet: %s balance %s < %s", from, have.String(), debit.String())
	}
	p.balances[from] = have.Sub(debit)
	p.balances[to] = p.balances[to].Add(credit)
	return nil
}

// Balances returns a copy of every balance.
func (p *Paper) Balances() map[string]decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(p.balances))
	for k, v := range p.balances {
		out[k] = v
	}
	return out
}
