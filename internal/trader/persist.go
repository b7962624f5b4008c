package trader

import (
	"context"
	"errors"
	"log"

	"alphabot/internal/model"
	"alphabot/internal/series"
	"alphabot/internal/store"
)

// Restore reloads series, RSI history and trades from the store. Missing or
// corrupt records leave the corresponding state empty.
func (svc *Service) Restore(ctx context.Context) {
	st := svc.deps.Store
	if st == nil {
		return
	}

	// ---- Series ----
	snap := series.Snapshot{Derived: make(map[model.Timeframe][]float64, len(model.DerivedTimeframes))}
	var base []model.Tick
	if err := store.LoadJSON(ctx, st, store.KeySeriesPrefix+string(model.TF1m), &base); err != nil {
		logLoad("series "+string(model.TF1m), err)
	} else {
		snap.Base = base
	}
	for _, tf := range model.DerivedTimeframes {
		var vals []float64
		if err := store.LoadJSON(ctx, st, store.KeySeriesPrefix+string(tf), &vals); err != nil {
			logLoad("series "+string(tf), err)
			continue
		}
		snap.Derived[tf] = vals
	}
	n := svc.deps.Series.Restore(snap)

	// ---- RSI history ----
	var rsi []float64
	if err := store.LoadJSON(ctx, st, store.KeyRSIHistory, &rsi); err != nil {
		logLoad("rsi history", err)
	} else {
		svc.deps.Indicators.History().Seed(rsi)
	}

	// ---- Trades ----
	var trades []model.TradeRecord
	if err := store.LoadJSON(ctx, st, store.KeyTrades, &trades); err != nil {
		logLoad("trades", err)
	} else {
		svc.deps.Position.Seed(trades)
		if svc.deps.PnL != nil {
			for _, tr := range trades {
				svc.deps.PnL.RecordTrade(tr)
			}
		}
	}

	log.Printf("[trader] restored %d base ticks, %d rsi values, %d trades (last action %s)",
		n, svc.deps.Indicators.History().Len(), len(trades), svc.deps.Position.LastAction())
}

func logLoad(what string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[trader] no persisted %s, starting empty", what)
		return
	}
	log.Printf("[trader] WARNING: %s unreadable, starting empty: %v", what, err)
}

// PersistSeries saves every timeframe and the RSI history.
func (svc *Service) PersistSeries(ctx context.Context) error {
	st := svc.deps.Store
	if st == nil {
		return nil
	}
	snap := svc.deps.Series.Snapshot()

	var errs []error
	errs = append(errs, store.SaveJSON(ctx, st, store.KeySeriesPrefix+string(model.TF1m), snap.Base))
	for _, tf := range model.DerivedTimeframes {
		errs = append(errs, store.SaveJSON(ctx, st, store.KeySeriesPrefix+string(tf), snap.Derived[tf]))
	}
	errs = append(errs, store.SaveJSON(ctx, st, store.KeyRSIHistory, svc.deps.Indicators.History().Recent(0)))

	err := errors.Join(errs...)
	svc.persistFailed(err)
	return err
}

// persistTrades saves the full trade history and the newest trade per side.
func (svc *Service) persistTrades(ctx context.Context) {
	st := svc.deps.Store
	if st == nil {
		return
	}
	pos := svc.deps.Position.Snapshot()

	errs := []error{store.SaveJSON(ctx, st, store.KeyTrades, pos.History)}
	if tr, ok := pos.Last(model.ActionBuy); ok {
		errs = append(errs, store.SaveJSON(ctx, st, store.KeyLastBuy, tr))
	}
	if tr, ok := pos.Last(model.ActionSell); ok {
		errs = append(errs, store.SaveJSON(ctx, st, store.KeyLastSell, tr))
	}
	svc.persistFailed(errors.Join(errs...))
}

func (svc *Service) persistFailed(err error) {
	if err == nil {
		return
	}
	log.Printf("[trader] persist error: %v", err)
	if svc.deps.Metrics != nil {
		svc.deps.Metrics.PersistErrors.Inc()
	}
}
