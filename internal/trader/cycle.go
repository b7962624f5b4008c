package trader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"alphabot/internal/control"
	"alphabot/internal/indicator"
	"alphabot/internal/logger"
	"alphabot/internal/model"
	"alphabot/internal/notification"
	"alphabot/internal/portfolio"
	"alphabot/internal/strategy"
)

// CycleResult describes one evaluation cycle.
type CycleResult struct {
	TraceID   string             `json:"trace_id"`
	At        time.Time          `json:"at"`
	Mode      model.Action       `json:"mode"`
	Rationale string             `json:"rationale"`
	Signal    *strategy.Signal   `json:"signal,omitempty"`
	Verdict   *portfolio.Verdict `json:"verdict,omitempty"`
	Trade     *model.TradeRecord `json:"trade,omitempty"`
	Forced    bool               `json:"forced,omitempty"`
	Warmup    float64            `json:"warmup_pct,omitempty"` // set while collecting data
	Err       string             `json:"error,omitempty"`
	Duration  time.Duration      `json:"duration"`
}

// RunCycle performs one evaluation without pausing afterwards.
func (svc *Service) RunCycle(ctx context.Context) CycleResult {
	start := svc.now()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(svc.cfg.Asset, start))
	res := svc.cycle(ctx, start)
	res.TraceID = logger.TraceID(ctx)
	res.At = start
	res.Duration = svc.now().Sub(start)
	svc.finish(ctx, res)
	return res
}

func (svc *Service) cycle(ctx context.Context, now time.Time) CycleResult {
	// ---- Operator commands ----
	var force model.Action
	for _, cmd := range svc.deps.Commands.Drain() {
		switch cmd {
		case control.CmdStop:
			svc.deps.Lifecycle.Stop()
			return CycleResult{Mode: model.ActionHold, Rationale: "stop requested"}
		case control.CmdForceBuy:
			force = model.ActionBuy
		case control.CmdForceSell:
			force = model.ActionSell
		}
	}

	// ---- Halt flag ----
	halted, err := svc.deps.Halt.IsTradingHalted(ctx)
	if err != nil {
		svc.log.Warn("halt check failed, treating as halted", slog.String("error", err.Error()))
		halted = true
	}
	svc.setHalted(ctx, halted)
	if halted {
		if force != "" {
			svc.log.Warn("forced trade dropped while halted", slog.String("action", string(force)))
		}
		return CycleResult{Mode: model.ActionPaused, Rationale: "trading halted"}
	}

	// ---- Forced trades ----
	if force != "" {
		return svc.forced(ctx, force, now)
	}

	// ---- Warm-up ----
	if have := svc.deps.Series.Len(model.TF5m) - 1; have < svc.cfg.MinWarmup {
		pct := 0.0
		if svc.cfg.MinWarmup > 0 && have > 0 {
			pct = float64(have) / float64(svc.cfg.MinWarmup) * 100
		}
		return CycleResult{
			Mode:      model.ActionHold,
			Rationale: fmt.Sprintf("collecting data: %.0f%% complete", pct),
			Warmup:    pct,
		}
	}

	// ---- Balances ----
	bal, err := svc.deps.Balances.GetBalances(ctx)
	if err != nil {
		return CycleResult{Mode: model.ActionHold, Rationale: "balance unavailable", Err: err.Error()}
	}
	svc.setBalances(bal)

	// ---- Indicators ----
	snap, err := svc.deps.Indicators.Build(svc.windows(), svc.crossRef(ctx))
	if err != nil {
		if svc.deps.Metrics != nil {
			svc.deps.Metrics.SnapshotErrors.Inc()
		}
		return CycleResult{Mode: model.ActionHold, Rationale: "indicators unavailable", Err: err.Error()}
	}
	if svc.deps.Metrics != nil {
		svc.deps.Metrics.RSI.Set(snap.RSI)
	}

	// ---- Decide ----
	pos := svc.deps.Position.Snapshot()
	sig := svc.deps.Strategy.Evaluate(snap, svc.strategyView(pos))
	svc.signals.Push(fmt.Sprintf("%s %s: %s", now.UTC().Format("15:04"), sig.Type, sig.Rationale))
	logger.FromContext(ctx, svc.log).Info("signal",
		slog.String("type", string(sig.Type)),
		slog.String("rationale", sig.Rationale),
		slog.Float64("price", snap.LastPrice),
		slog.Float64("rsi", snap.RSI),
		slog.Bool("flag_macd", sig.Flags.MACD),
		slog.Bool("flag_rsi", sig.Flags.RSI),
		slog.Bool("flag_histogram", sig.Flags.Histogram),
	)

	v := svc.deps.Gate.Approve(sig, pos, bal, now)
	res := CycleResult{Mode: v.Mode, Rationale: sig.Rationale, Signal: &sig, Verdict: &v}
	if !v.Approved {
		if v.Reason != "" {
			res.Rationale = fmt.Sprintf("%s (rejected: %s)", sig.Rationale, v.Reason)
		}
		return res
	}

	// ---- Execute ----
	return svc.execute(ctx, res, snap.LastPrice, snap.RSI, now)
}

// forced runs an operator override: the strategy and cooldown are skipped,
// balance sufficiency still applies.
func (svc *Service) forced(ctx context.Context, action model.Action, now time.Time) CycleResult {
	bal, err := svc.deps.Balances.GetBalances(ctx)
	if err != nil {
		return CycleResult{Mode: model.ActionHold, Rationale: "balance unavailable", Forced: true, Err: err.Error()}
	}
	svc.setBalances(bal)

	v := svc.deps.Gate.ApproveForce(action, bal)
	res := CycleResult{Mode: v.Mode, Rationale: "forced " + string(action), Verdict: &v, Forced: true}
	if !v.Approved {
		res.Rationale = fmt.Sprintf("forced %s (rejected: %s)", action, v.Reason)
		return res
	}

	price := 0.0
	if t, ok := svc.deps.Series.Latest(); ok {
		price = t.Price
	}
	rsi, _ := svc.deps.Indicators.History().Latest()
	return svc.execute(ctx, res, price, rsi, now)
}

// execute performs an approved action and records the trade on success.
func (svc *Service) execute(ctx context.Context, res CycleResult, price, rsi float64, now time.Time) CycleResult {
	action := res.Mode
	size := svc.deps.Gate.Limits().TradeSize

	out, err := svc.deps.Executor.Execute(ctx, action, size)
	if err != nil {
		if svc.deps.Metrics != nil {
			svc.deps.Metrics.ExecutionFailures.Inc()
		}
		svc.notify(ctx, notification.ExecutionFailed(action, err))
		res.Mode = model.ActionHold
		res.Err = err.Error()
		res.Rationale = fmt.Sprintf("%s failed: %s", action, res.Rationale)
		return res
	}

	tr := model.TradeRecord{
		ID:         uuid.NewString(),
		TS:         now.UTC(),
		Action:     action,
		Price:      price,
		RSIAtTrade: rsi,
		ResultRef:  out.Ref,
		Amount:     out.Amount.String(),
		Rationale:  res.Rationale,
		Forced:     res.Forced,
	}
	if err := svc.deps.Position.Record(tr); err != nil {
		svc.log.Error("record trade", slog.String("error", err.Error()))
	}
	svc.mu.Lock()
	svc.resumeFromPause = false
	svc.mu.Unlock()

	if svc.deps.PnL != nil {
		svc.deps.PnL.RecordTrade(tr)
	}
	if svc.deps.Journal != nil {
		if err := svc.deps.Journal.Record(tr); err != nil {
			svc.log.Error("journal trade", slog.String("error", err.Error()))
		}
	}
	svc.persistTrades(ctx)
	if svc.deps.Metrics != nil {
		svc.deps.Metrics.TradesTotal.WithLabelValues(string(action)).Inc()
	}
	svc.notify(ctx, notification.TradeExecuted(tr))

	res.Trade = &tr
	return res
}

// strategyView returns the position the strategy decides on. After a halt
// the last action reads as paused until the next trade; the gate always
// sees the real position.
func (svc *Service) strategyView(pos model.PositionState) model.PositionState {
	svc.mu.RLock()
	resume := svc.resumeFromPause
	svc.mu.RUnlock()
	if resume {
		pos.LastAction = model.ActionPaused
	}
	return pos
}

func (svc *Service) windows() indicator.Windows {
	w := make(indicator.Windows, len(model.AllTimeframes))
	for _, tf := range model.AllTimeframes {
		w[tf] = svc.deps.Series.Window(tf, 0)
	}
	return w
}

// crossRef returns the reference price, 0 when unavailable.
func (svc *Service) crossRef(ctx context.Context) float64 {
	if svc.deps.CrossRef == nil || svc.cfg.CrossRefID == "" {
		return 0
	}
	p, err := svc.deps.CrossRef.GetLatestPrice(ctx, svc.cfg.CrossRefID)
	if err != nil {
		svc.log.Warn("cross reference unavailable", slog.String("error", err.Error()))
		return 0
	}
	return p
}

func (svc *Service) setHalted(ctx context.Context, halted bool) {
	svc.mu.Lock()
	changed := svc.halted != halted
	svc.halted = halted
	if halted {
		svc.resumeFromPause = true
	}
	svc.mu.Unlock()

	if svc.deps.Metrics != nil {
		v := 0.0
		if halted {
			v = 1
		}
		svc.deps.Metrics.Halted.Set(v)
	}
	if svc.deps.Health != nil {
		svc.deps.Health.SetHalted(halted)
	}
	if changed {
		svc.notify(ctx, notification.HaltChanged(halted))
	}
}

func (svc *Service) setBalances(b model.Balances) {
	svc.mu.Lock()
	svc.lastBalances = &b
	svc.mu.Unlock()
}

func (svc *Service) notify(ctx context.Context, a notification.Alert) {
	if err := svc.deps.Notifier.Send(ctx, a); err != nil {
		svc.log.Warn("notify", slog.String("title", a.Title), slog.String("error", err.Error()))
	}
}

// finish records the result for status and metrics and logs it.
func (svc *Service) finish(ctx context.Context, res CycleResult) {
	svc.mu.Lock()
	svc.last = res
	svc.mu.Unlock()

	if m := svc.deps.Metrics; m != nil {
		m.Decisions.WithLabelValues(string(res.Mode)).Inc()
		m.CycleDur.Observe(res.Duration.Seconds())
	}
	if svc.deps.Health != nil {
		svc.deps.Health.SetCycle(string(res.Mode), res.At)
	}

	attrs := []any{
		slog.String("mode", string(res.Mode)),
		slog.String("rationale", res.Rationale),
		slog.Duration("duration", res.Duration),
	}
	if res.Err != "" {
		attrs = append(attrs, slog.String("error", res.Err))
	}
	if res.Trade != nil {
		attrs = append(attrs, slog.String("trade_id", res.Trade.ID), slog.String("ref", res.Trade.ResultRef))
	}
	logger.FromContext(ctx, svc.log).Info("cycle", attrs...)

	if svc.OnCycle != nil {
		svc.OnCycle(res)
	}
}
