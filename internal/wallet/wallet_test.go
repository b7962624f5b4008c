package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"alphabot/internal/model"
)

type fixedPrice float64

func (f fixedPrice) Latest() (model.Tick, bool) {
	return model.Tick{TS: time.Now(), Price: float64(f)}, f > 0
}

type failingClient struct{ err error }

func (f failingClient) Address(string) (string, error) { return "", f.err }
func (f failingClient) Balance(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, f.err
}

func TestOracle_ConvertsBase(t *testing.T) {
	w := NewPaper(map[string]decimal.Decimal{
		"BUSD": decimal.NewFromInt(500),
		"BTC":  decimal.RequireFromString("0.01"),
	})
	o := NewOracle(w, fixedPrice(30000), "BUSD", "BTC")

	bal, err := o.GetBalances(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !bal.Quote.Equal(decimal.NewFromInt(500)) || !bal.BaseValue.Equal(decimal.NewFromInt(300)) {
		t.Errorf("unexpected balances quote=%s value=%s", bal.Quote, bal.BaseValue)
	}
	if addrs := o.Addresses(); len(addrs) != 2 {
		t.Errorf("expected 2 addresses, got %v", addrs)
	}
}

func TestOracle_MissingChainIsZero(t *testing.T) {
	w := NewPaper(map[string]decimal.Decimal{"BUSD": decimal.NewFromInt(500)})
	bal, err := NewOracle(w, fixedPrice(30000), "BUSD", "BTC").GetBalances(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !bal.Base.IsZero() || !bal.BaseValue.IsZero() {
		t.Errorf("expected zero base, got %s", bal.Base)
	}
}

func TestOracle_ErrorsAreUnavailable(t *testing.T) {
	o := NewOracle(failingClient{err: errors.New("rpc timeout")}, fixedPrice(1), "BUSD", "BTC")
	bal, err := o.GetBalances(context.Background())
	if !errors.Is(err, ErrBalanceUnavailable) {
		t.Fatalf("expected ErrBalanceUnavailable, got %v", err)
	}
	if !bal.Quote.IsZero() {
		t.Errorf("partial balance leaked: %+v", bal)
	}

	w := NewPaper(map[string]decimal.Decimal{"BUSD": decimal.NewFromInt(1)})
	if _, err := NewOracle(w, fixedPrice(0), "BUSD", "BTC").GetBalances(context.Background()); !errors.Is(err, ErrBalanceUnavailable) {
		t.Fatalf("no price: expected ErrBalanceUnavailable, got %v", err)
	}
}

func TestPaper_Transfer(t *testing.T) {
	w := NewPaper(map[string]decimal.Decimal{"BUSD": decimal.NewFromInt(100)})
	if err := w.Transfer("BUSD", decimal.NewFromInt(150), "BTC", decimal.NewFromInt(1)); err == nil {
		t.Fatal("expected overdraft error")
	}
	if err := w.Transfer("BUSD", decimal.NewFromInt(40), "BTC", decimal.RequireFromString("0.002")); err != nil {
		t.Fatal(err)
	}
	b := w.Balances()
	if !b["BUSD"].Equal(decimal.NewFromInt(60)) || !b["BTC"].Equal(decimal.RequireFromString("0.002")) {
		t.Errorf("unexpected balances %v", b)
	}
}
