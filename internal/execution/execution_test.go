package execution

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"alphabot/internal/model"
	"alphabot/internal/wallet"
)

type fixedPrice float64

func (f fixedPrice) Latest() (model.Tick, bool) {
	return model.Tick{TS: time.Now(), Price: float64(f)}, f > 0
}

func TestPaperExecutor_BuyThenSell(t *testing.T) {
	w := wallet.NewPaper(map[string]decimal.Decimal{"BUSD": decimal.NewFromInt(1000)})
	ex := NewPaperExecutor(w, fixedPrice(100), "BUSD", "BTC", 100) // 1%

	res, err := ex.Execute(context.Background(), model.ActionBuy, decimal.NewFromInt(404))
	if err != nil {
		t.Fatal(err)
	}
	if res.FillPrice != 101 || !strings.HasPrefix(res.Ref, "PAPER-") {
		t.Errorf("unexpected buy result %+v", res)
	}
	b := w.Balances()
	if !b["BUSD"].Equal(decimal.NewFromInt(596)) || !b["BTC"].Equal(decimal.NewFromInt(4)) {
		t.Errorf("unexpected balances after buy %v", b)
	}

	res, err = ex.Execute(context.Background(), model.ActionSell, decimal.NewFromInt(198))
	if err != nil {
		t.Fatal(err)
	}
	if res.FillPrice != 99 {
		t.Errorf("expected sell fill 99, got %v", res.FillPrice)
	}
	b = w.Balances()
	if !b["BTC"].Equal(decimal.NewFromInt(2)) || !b["BUSD"].Equal(decimal.NewFromInt(794)) {
		t.Errorf("unexpected balances after sell %v", b)
	}
	if len(ex.GetFills()) != 2 {
		t.Errorf("expected 2 fills, got %d", len(ex.GetFills()))
	}
}

func TestPaperExecutor_Failures(t *testing.T) {
	w := wallet.NewPaper(map[string]decimal.Decimal{"BUSD": decimal.NewFromInt(10)})
	ex := NewPaperExecutor(w, fixedPrice(100), "BUSD", "BTC", 0)

	cases := []struct {
		name   string
		action model.Action
		size   decimal.Decimal
	}{
		{"overdraft", model.ActionBuy, decimal.NewFromInt(400)},
		{"hold", model.ActionHold, decimal.NewFromInt(1)},
		{"zero size", model.ActionBuy, decimal.Zero},
		{"no base", model.ActionSell, decimal.NewFromInt(1)},
	}
	for _, tc := range cases {
		if _, err := ex.Execute(context.Background(), tc.action, tc.size); !errors.Is(err, ErrExecutionFailed) {
			t.Errorf("%s: expected ErrExecutionFailed, got %v", tc.name, err)
		}
	}
	if len(ex.GetFills()) != 0 {
		t.Errorf("failed executions must not be recorded")
	}
}

func TestJournal_RecordAndRead(t *testing.T) {
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	for i, a := range []model.Action{model.ActionBuy, model.ActionSell} {
		tr := model.TradeRecord{
			ID: string(a) + "-1", TS: ts.Add(time.Duration(i) * time.Hour), Action: a,
			Price: 100 + float64(i), RSIAtTrade: 42.5, ResultRef: "ref", Amount: "400", Rationale: "test", Forced: i == 1,
		}
		if err := j.Record(tr); err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.GetTrades(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got))
	}
	if got[0].Action != model.ActionSell || !got[0].Forced || got[0].Price != 101 || !got[0].TS.Equal(ts.Add(time.Hour)) {
		t.Errorf("unexpected newest trade %+v", got[0])
	}
	if got[1].RSIAtTrade != 42.5 || got[1].Amount != "400" {
		t.Errorf("unexpected oldest trade %+v", got[1])
	}
}
