package strategy

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"alphabot/internal/indicator"
	"alphabot/internal/model"
)

// neutral returns a snapshot that triggers no rule.
func neutral() indicator.Snapshot {
	return indicator.Snapshot{
		LastPrice:      100,
		ReferencePrice: 100,
		RSI:            50,
		RSIRecent:      []float64{50, 51, 49, 50},
		ShortRSI:       []float64{50, 52, 51},
		SMA:            100,
		EMA:            100,
		MACD: indicator.MACDResult{
			Line:      []float64{1, 1, 1},
			Signal:    []float64{0, 0, 0},
			Histogram: []float64{1, 1, 1},
		},
		PSAR: indicator.PSARResult{
			Values: []float64{95, 96, 104, 96, 95, 104, 96},
			Trends: []indicator.Trend{
				indicator.TrendStable, indicator.TrendRising, indicator.TrendFalling, indicator.TrendRising,
				indicator.TrendRising, indicator.TrendFalling, indicator.TrendRising,
			},
		},
		PSARCloses: []float64{100, 100, 100, 100, 100, 100, 100},
		Top:        indicator.Extreme{Index: -1},
		Bottom:     indicator.Extreme{Index: -1},
		RSITop:     indicator.Extreme{Index: -1},
		RSIBottom:  indicator.Extreme{Index: -1},
		Directions: map[model.Timeframe]indicator.Direction{model.TF5m: indicator.Stable},
	}
}

// trending sets every SAR bar to trend, placed on the matching side of price.
func trending(s indicator.Snapshot, trend indicator.Trend) indicator.Snapshot {
	n := len(s.PSARCloses)
	s.PSAR = indicator.PSARResult{Values: make([]float64, n), Trends: make([]indicator.Trend, n)}
	for i := range s.PSARCloses {
		s.PSAR.Trends[i] = trend
		if trend == indicator.TrendFalling {
			s.PSAR.Values[i] = s.PSARCloses[i] + 3
		} else {
			s.PSAR.Values[i] = s.PSARCloses[i] - 3
		}
	}
	return s
}

func position(last model.Action, price float64) model.PositionState {
	if last == model.ActionPaused {
		return model.PositionState{LastAction: model.ActionPaused}
	}
	tr := model.TradeRecord{ID: "t1", TS: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), Action: last, Price: price}
	return model.PositionState{LastAction: last, LastTrade: &tr, History: []model.TradeRecord{tr}}
}

func TestEvaluate_NeutralHolds(t *testing.T) {
	e := NewEngine(DefaultConfig())
	for _, last := range []model.Action{model.ActionBuy, model.ActionSell, model.ActionPaused} {
		sig := e.Evaluate(neutral(), position(last, 100))
		if sig.Type != model.ActionHold {
			t.Errorf("last=%s: expected hold, got %s (%s)", last, sig.Type, sig.Rationale)
		}
		if !strings.HasPrefix(sig.Rationale, "no clear trading signal") {
			t.Errorf("last=%s: unexpected rationale %q", last, sig.Rationale)
		}
	}
}

func TestEvaluate_FlashSellBeforeReversal(t *testing.T) {
	// Entry 2% above current price, SAR falling and above price at every bar.
	s := trending(neutral(), indicator.TrendFalling)
	s.Top.IsTrendReversal = true
	s.RSITop.IsTrendReversal = true
	s.RSI = 65
	s.Directions[model.TF5m] = indicator.Downward

	sig := NewEngine(DefaultConfig()).Evaluate(s, position(model.ActionBuy, 102.04))
	if sig.Type != model.ActionSell || sig.Rationale != "flash sell signal" {
		t.Fatalf("expected flash sell, got %s %q", sig.Type, sig.Rationale)
	}
}

func TestEvaluate_FlashBuy(t *testing.T) {
	s := trending(neutral(), indicator.TrendRising)
	sig := NewEngine(DefaultConfig()).Evaluate(s, position(model.ActionSell, 100))
	if sig.Type != model.ActionBuy || sig.Rationale != "flash buy signal" {
		t.Fatalf("expected flash buy, got %s %q", sig.Type, sig.Rationale)
	}
}

func TestEvaluate_FlashNeedsFullLookback(t *testing.T) {
	s := trending(neutral(), indicator.TrendFalling)
	// One bar in the lookback window flips side.
	s.PSAR.Values[len(s.PSAR.Values)-3] = 90
	sig := NewEngine(DefaultConfig()).Evaluate(s, position(model.ActionBuy, 90))
	if sig.Rationale == "flash sell signal" {
		t.Fatal("flash must require every bar in the lookback")
	}

	short := trending(neutral(), indicator.TrendRising)
	short.PSAR.Values = short.PSAR.Values[:3]
	short.PSAR.Trends = short.PSAR.Trends[:3]
	short.PSARCloses = short.PSARCloses[:3]
	if sig := NewEngine(DefaultConfig()).Evaluate(short, position(model.ActionSell, 100)); sig.Type != model.ActionHold {
		t.Fatalf("fewer bars than lookback: expected hold, got %s %q", sig.Type, sig.Rationale)
	}
}

func TestEvaluate_SuddenDrop(t *testing.T) {
	e := NewEngine(DefaultConfig())
	s := neutral()
	s.PercentChange = -6
	s.RSI = 25

	sig := e.Evaluate(s, position(model.ActionSell, 110))
	if sig.Type != model.ActionBuy || !strings.HasPrefix(sig.Rationale, "sudden price drop detected (-6.00% decrease)") {
		t.Fatalf("expected sudden drop buy, got %s %q", sig.Type, sig.Rationale)
	}

	s.RSI = 35
	if sig := e.Evaluate(s, position(model.ActionSell, 110)); sig.Type != model.ActionHold {
		t.Errorf("RSI above oversold: expected hold, got %s", sig.Type)
	}
}

func TestEvaluate_SuddenJump(t *testing.T) {
	s := neutral()
	s.PercentChange = 6
	s.RSI = 75
	sig := NewEngine(DefaultConfig()).Evaluate(s, position(model.ActionBuy, 90))
	if sig.Type != model.ActionSell || !strings.HasPrefix(sig.Rationale, "sudden price jump detected") {
		t.Fatalf("expected sudden jump sell, got %s %q", sig.Type, sig.Rationale)
	}
}

func TestEvaluate_StopLoss(t *testing.T) {
	s := neutral()
	// Newest SAR 102 on a rising bar: price 100 is 1.96% below it.
	s.PSAR.Values[len(s.PSAR.Values)-1] = 102
	sig := NewEngine(DefaultConfig()).Evaluate(s, position(model.ActionBuy, 101))
	if sig.Type != model.ActionSell || !strings.HasPrefix(sig.Rationale, "stop loss triggered") {
		t.Fatalf("expected stop loss, got %s %q", sig.Type, sig.Rationale)
	}

	s.PSAR.Values[len(s.PSAR.Values)-1] = 100.5
	if sig := NewEngine(DefaultConfig()).Evaluate(s, position(model.ActionBuy, 101)); sig.Type != model.ActionHold {
		t.Errorf("0.5%% below SAR: expected hold, got %s %q", sig.Type, sig.Rationale)
	}
}

func buyReversal() indicator.Snapshot {
	s := neutral()
	s.Bottom.IsTrendReversal = true
	s.RSIBottom.IsTrendReversal = true
	s.Directions[model.TF5m] = indicator.Upward
	s.ShortRSI = []float64{40, 42, 45}
	return s
}

func TestEvaluate_BuyReversal(t *testing.T) {
	e := NewEngine(DefaultConfig())

	sig := e.Evaluate(buyReversal(), position(model.ActionSell, 100))
	if sig.Type != model.ActionBuy || sig.Rationale != "price approaching support level and bottom detected" {
		t.Fatalf("expected reversal buy, got %s %q", sig.Type, sig.Rationale)
	}

	s := buyReversal()
	s.CrossRefPrice = 100.3 // 0.3% away, within 0.5%
	if sig := e.Evaluate(s, position(model.ActionSell, 100)); sig.Type != model.ActionBuy {
		t.Errorf("reference within tolerance: expected buy, got %s", sig.Type)
	}
	s.CrossRefPrice = 101 // 1% away
	if sig := e.Evaluate(s, position(model.ActionSell, 100)); sig.Type != model.ActionHold {
		t.Errorf("reference outside tolerance: expected hold, got %s", sig.Type)
	}

	s = buyReversal()
	s.Directions[model.TF5m] = indicator.Stable
	if sig := e.Evaluate(s, position(model.ActionSell, 100)); sig.Type != model.ActionHold {
		t.Errorf("stable direction: expected hold, got %s", sig.Type)
	}

	s = buyReversal()
	s.ShortRSI = []float64{55}
	if sig := e.Evaluate(s, position(model.ActionSell, 100)); sig.Type != model.ActionHold {
		t.Errorf("short RSI above ceiling: expected hold, got %s", sig.Type)
	}
}

func TestEvaluate_SellReversal(t *testing.T) {
	e := NewEngine(DefaultConfig())
	s := neutral()
	s.Top.IsTrendReversal = true
	s.RSITop.IsTrendReversal = true
	s.Directions[model.TF5m] = indicator.Downward
	s.RSI = 65
	s.LastPrice = 105
	s.PSAR.Values[len(s.PSAR.Values)-1] = 101 // below price, no stop loss

	sig := e.Evaluate(s, position(model.ActionBuy, 100))
	if sig.Type != model.ActionSell || sig.Rationale != "price approaching resistance level and top detected" {
		t.Fatalf("expected reversal sell, got %s %q", sig.Type, sig.Rationale)
	}

	// Never sell the reversal at or below entry.
	if sig := e.Evaluate(s, position(model.ActionBuy, 105)); sig.Type != model.ActionHold {
		t.Errorf("price at entry: expected hold, got %s %q", sig.Type, sig.Rationale)
	}
}

func TestEvaluate_Paused(t *testing.T) {
	e := NewEngine(DefaultConfig())
	paused := position(model.ActionPaused, 0)

	bear := neutral()
	bear.MACD = indicator.MACDResult{Line: []float64{1, 1, -1}, Signal: []float64{0, 0, 0}, Histogram: []float64{1, 1, -1}}
	bear.PercentChange = -1
	if sig := e.Evaluate(bear, paused); sig.Type != model.ActionSell {
		t.Errorf("bearish crossover down-move: expected sell, got %s", sig.Type)
	}

	bull := neutral()
	bull.MACD = indicator.MACDResult{Line: []float64{-1, -1, 1}, Signal: []float64{0, 0, 0}, Histogram: []float64{-1, -1, 1}}
	bull.PercentChange = 1
	bull.RSI = 40
	sig := e.Evaluate(bull, paused)
	if sig.Type != model.ActionBuy {
		t.Errorf("bullish crossover up-move: expected buy, got %s", sig.Type)
	}
	if !sig.Flags.MACD || !sig.Flags.Histogram {
		t.Errorf("expected buy-side MACD and histogram flags, got %+v", sig.Flags)
	}

	bull.PercentChange = -1
	if sig := e.Evaluate(bull, paused); sig.Type != model.ActionHold {
		t.Errorf("bullish crossover against move: expected hold, got %s", sig.Type)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	s := buyReversal()
	pos := position(model.ActionSell, 100)
	a := e.Evaluate(s, pos)
	b := e.Evaluate(s, pos)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("non-deterministic: %+v vs %+v", a, b)
	}
}
