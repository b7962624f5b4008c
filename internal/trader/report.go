package trader

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"alphabot/internal/model"
	"alphabot/internal/portfolio"
)

// SignalTracker keeps the newest signal rationales for the status report.
type SignalTracker struct {
	mu      sync.Mutex
	cap     int
	entries []string
}

// NewSignalTracker creates a tracker holding up to capacity entries.
func NewSignalTracker(capacity int) *SignalTracker {
	if capacity <= 0 {
		capacity = 20
	}
	return &SignalTracker{cap: capacity}
}

// Push appends an entry, evicting the oldest when full.
func (t *SignalTracker) Push(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, s)
	if excess := len(t.entries) - t.cap; excess > 0 {
		t.entries = append(t.entries[:0:0], t.entries[excess:]...)
	}
}

// Entries returns a copy, oldest first.
func (t *SignalTracker) Entries() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.entries))
	copy(out, t.entries)
	return out
}

// Status is the periodic report, also served over HTTP.
type Status struct {
	Asset           string                  `json:"asset"`
	Uptime          string                  `json:"uptime"`
	Halted          bool                    `json:"halted"`
	LastPrice       float64                 `json:"last_price"`
	LastAction      model.Action            `json:"last_action"`
	Buys            int                     `json:"buys"`
	Sells           int                     `json:"sells"`
	GainedSinceBuy  *float64                `json:"gained_since_buy_pct,omitempty"`
	GainedSinceSell *float64                `json:"gained_since_sell_pct,omitempty"`
	SeriesLen       map[model.Timeframe]int `json:"series_len"`
	RSIHistory      int                     `json:"rsi_history"`
	Balances        *model.Balances         `json:"balances,omitempty"`
	PnL             *portfolio.PnLSummary   `json:"pnl,omitempty"`
	Risk            map[string]interface{}  `json:"risk"`
	LastCycle       CycleResult             `json:"last_cycle"`
	Signals         []string                `json:"signals"`
}

// Status assembles the current report.
func (svc *Service) Status() Status {
	st := Status{
		Asset:      svc.cfg.Asset,
		Uptime:     time.Since(svc.startedAt).Round(time.Second).String(),
		LastAction: svc.deps.Position.LastAction(),
		SeriesLen:  make(map[model.Timeframe]int, len(model.AllTimeframes)),
		RSIHistory: svc.deps.Indicators.History().Len(),
		Risk:       svc.deps.Gate.GetStatus(),
		Signals:    svc.signals.Entries(),
	}
	st.Buys, st.Sells = svc.deps.Position.Counts()
	for _, tf := range model.AllTimeframes {
		st.SeriesLen[tf] = svc.deps.Series.Len(tf)
	}

	if t, ok := svc.deps.Series.Latest(); ok {
		st.LastPrice = t.Price
		if g, ok := svc.deps.Position.GainedSinceBuy(t.Price); ok {
			st.GainedSinceBuy = &g
		}
		if g, ok := svc.deps.Position.GainedSinceSell(t.Price); ok {
			st.GainedSinceSell = &g
		}
		if svc.deps.PnL != nil {
			sum := svc.deps.PnL.GetSummary(t.Price)
			st.PnL = &sum
		}
	}

	svc.mu.RLock()
	st.Halted = svc.halted
	st.LastCycle = svc.last
	if svc.lastBalances != nil {
		b := *svc.lastBalances
		st.Balances = &b
	}
	svc.mu.RUnlock()
	return st
}

// Report logs the status report.
func (svc *Service) Report() {
	data, err := json.Marshal(svc.Status())
	if err != nil {
		log.Printf("[trader] status marshal: %v", err)
		return
	}
	log.Printf("[trader] status %s", data)
}

// Scheduler runs the periodic status report and series persistence.
type Scheduler struct {
	c *cron.Cron
}

// NewScheduler registers the report and persistence jobs. Specs use the
// robfig/cron format, e.g. "@every 10m".
func NewScheduler(svc *Service, reportSpec, persistSpec string) (*Scheduler, error) {
	c := cron.New()
	if reportSpec != "" {
		if _, err := c.AddFunc(reportSpec, svc.Report); err != nil {
			return nil, err
		}
	}
	if persistSpec != "" {
		if _, err := c.AddFunc(persistSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			svc.PersistSeries(ctx)
		}); err != nil {
			return nil, err
		}
	}
	return &Scheduler{c: c}, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.c.Start()
	log.Printf("[trader] scheduler started (%d jobs)", len(s.c.Entries()))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}
