// Package trader runs the evaluation loop: it checks the halt flag and
// warm-up, builds the indicator snapshot, asks the strategy for a signal,
// passes it through the risk gate and executes approved trades.
package trader

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"time"

	"alphabot/internal/control"
	"alphabot/internal/execution"
	"alphabot/internal/halt"
	"alphabot/internal/indicator"
	"alphabot/internal/marketdata/feed"
	"alphabot/internal/metrics"
	"alphabot/internal/model"
	"alphabot/internal/notification"
	"alphabot/internal/portfolio"
	"alphabot/internal/series"
	"alphabot/internal/store"
	"alphabot/internal/strategy"
)

// BalanceOracle returns a consistent balance view.
type BalanceOracle interface {
	GetBalances(ctx context.Context) (model.Balances, error)
}

// TradeJournal records executed trades for audit.
type TradeJournal interface {
	Record(tr model.TradeRecord) error
}

// Config holds the loop settings.
type Config struct {
	Asset         string
	CrossRefID    string        // reference feed id, empty disables
	MinWarmup     int           // 5m samples (minus one) required before evaluating
	HoldPause     time.Duration // pause after a cycle without a trade
	SettleDelay   time.Duration // pause after an executed trade
	SignalHistory int           // rationales kept for the status report
}

// DefaultConfig returns the production loop settings.
func DefaultConfig() Config {
	return Config{
		Asset:         "BTC.BTC",
		CrossRefID:    "bitcoin",
		MinWarmup:     72,
		HoldPause:     time.Minute,
		SettleDelay:   12 * time.Second,
		SignalHistory: 20,
	}
}

// Deps are the collaborators of the service. Store, Journal, Notifier,
// CrossRef, PnL, Metrics, Health and Logger are optional.
type Deps struct {
	Series     *series.Store
	Indicators *indicator.Engine
	Strategy   strategy.Strategy
	Position   *portfolio.Position
	Gate       *portfolio.Gate
	Balances   BalanceOracle
	Executor   execution.Executor
	Halt       halt.Flag
	Commands   *control.Channel
	Lifecycle  *control.Lifecycle

	CrossRef feed.PriceFeed
	Store    store.Store
	Journal  TradeJournal
	Notifier notification.Notifier
	PnL      *portfolio.PnLTracker
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
	Logger   *slog.Logger
}

// Service is the evaluation loop. It is the single writer of the position.
type Service struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
	now  func() time.Time

	signals   *SignalTracker
	startedAt time.Time

	mu           sync.RWMutex
	last         CycleResult
	lastBalances *model.Balances
	halted       bool
	// set while halted and until the next trade: evaluation starts from
	// the crossover branch again
	resumeFromPause bool

	// OnCycle is called with every cycle result (optional, for streaming).
	OnCycle func(CycleResult)
}

// New creates the service.
func New(cfg Config, deps Deps) *Service {
	if cfg.SignalHistory <= 0 {
		cfg.SignalHistory = 20
	}
	if deps.Commands == nil {
		deps.Commands = control.NewChannel(0)
	}
	if deps.Lifecycle == nil {
		deps.Lifecycle = control.NewLifecycle()
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.NewLogNotifier()
	}
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		deps:      deps,
		log:       l.With(slog.String("component", "trader"), slog.String("asset", cfg.Asset)),
		now:       time.Now,
		signals:   NewSignalTracker(cfg.SignalHistory),
		startedAt: time.Now(),
	}
}

// Run evaluates cycles until the lifecycle stops or ctx ends. In-flight
// cycles complete before Run returns.
func (svc *Service) Run(ctx context.Context) {
	log.Printf("[trader] starting evaluation loop for %s (warm-up %d, hold %s, settle %s)",
		svc.cfg.Asset, svc.cfg.MinWarmup, svc.cfg.HoldPause, svc.cfg.SettleDelay)

	lc := svc.deps.Lifecycle
	for !lc.Stopped() && ctx.Err() == nil {
		res := svc.RunCycle(ctx)
		if lc.Stopped() {
			break
		}

		pause := svc.cfg.HoldPause
		if res.Trade != nil {
			pause = svc.cfg.SettleDelay
		}
		if !svc.sleep(ctx, pause) {
			break
		}
	}
	log.Printf("[trader] evaluation loop stopped")
}

func (svc *Service) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil && !svc.deps.Lifecycle.Stopped()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-svc.deps.Lifecycle.Done():
		return false
	case <-t.C:
		return true
	}
}

// Last returns the most recent cycle result.
func (svc *Service) Last() CycleResult {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.last
}

// Signals returns the tracked signal rationales, oldest first.
func (svc *Service) Signals() []string { return svc.signals.Entries() }
