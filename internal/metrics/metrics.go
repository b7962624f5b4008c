// Package metrics exposes Prometheus instruments and the health endpoint.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Feed
	TicksTotal   prometheus.Counter
	FeedErrors   prometheus.Counter
	WSReconnects prometheus.Counter
	LastPrice    prometheus.Gauge

	// Series
	SeriesLen      *prometheus.GaugeVec   // labels: tf
	DerivedAppends *prometheus.CounterVec // labels: tf

	// Evaluation
	Decisions      *prometheus.CounterVec // labels: mode
	RiskRejections *prometheus.CounterVec // labels: reason
	CycleDur       prometheus.Histogram
	SnapshotErrors prometheus.Counter
	RSI            prometheus.Gauge

	// Execution
	TradesTotal       *prometheus.CounterVec // labels: action
	ExecutionFailures prometheus.Counter
	Halted            prometheus.Gauge // 0=running, 1=halted

	// Persistence
	BreakerState   *prometheus.GaugeVec // labels: name; 0=closed, 1=open, 2=half-open
	BufferedWrites prometheus.Counter
	PersistErrors  prometheus.Counter
}

// NewMetrics creates every metric and registers it with reg. A nil reg
// registers with the Prometheus default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphabot_ticks_total",
			Help: "Base price samples appended",
		}),
		FeedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphabot_feed_errors_total",
			Help: "Price fetches that failed (tick dropped)",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphabot_ws_reconnects_total",
			Help: "Price websocket reconnection attempts",
		}),
		LastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alphabot_last_price",
			Help: "Most recent base price",
		}),

		SeriesLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alphabot_series_length",
			Help: "Samples held per timeframe",
		}, []string{"tf"}),
		DerivedAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alphabot_derived_appends_total",
			Help: "Samples appended to derived timeframes",
		}, []string{"tf"}),

		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alphabot_decisions_total",
			Help: "Evaluation cycle outcomes by mode",
		}, []string{"mode"}),
		RiskRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alphabot_risk_rejections_total",
			Help: "Signals downgraded to hold by the risk gate",
		}, []string{"reason"}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alphabot_cycle_duration_seconds",
			Help:    "Evaluation cycle latency excluding pauses",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphabot_snapshot_errors_total",
			Help: "Cycles that held because indicators could not be computed",
		}),
		RSI: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alphabot_rsi",
			Help: "Latest RSI history value",
		}),

		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alphabot_trades_total",
			Help: "Executed trades by action",
		}, []string{"action"}),
		ExecutionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphabot_execution_failures_total",
			Help: "Trades the executor failed to complete",
		}),
		Halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alphabot_halted",
			Help: "Trading halt state (0=running, 1=halted)",
		}),

		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alphabot_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		BufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphabot_buffered_writes_total",
			Help: "State saves buffered while the store breaker was open",
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphabot_persist_errors_total",
			Help: "Failed state saves",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.FeedErrors,
		m.WSReconnects,
		m.LastPrice,
		m.SeriesLen,
		m.DerivedAppends,
		m.Decisions,
		m.RiskRejections,
		m.CycleDur,
		m.SnapshotErrors,
		m.RSI,
		m.TradesTotal,
		m.ExecutionFailures,
		m.Halted,
		m.BreakerState,
		m.BufferedWrites,
		m.PersistErrors,
	)

	return m
}

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastTickTime   time.Time `json:"last_tick_time"`
	MaxTickAge     time.Duration
	RedisConnected bool   `json:"redis_connected"`
	StoreOK        bool   `json:"store_ok"`
	Halted         bool   `json:"halted"`
	LastMode       string `json:"last_mode"`
	LastCycleAt    time.Time

	// Liveness probe results
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	StoreLatencyMs float64   `json:"store_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status. A tick older than
// maxTickAge marks the feed degraded.
func NewHealthStatus(maxTickAge time.Duration) *HealthStatus {
	return &HealthStatus{
		StartedAt:  time.Now(),
		MaxTickAge: maxTickAge,
		StoreOK:    true,
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.FeedConnected = true
	h.mu.Unlock()
}

func (h *HealthStatus) SetStoreOK(v bool) {
	h.mu.Lock()
	h.StoreOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetHalted(v bool) {
	h.mu.Lock()
	h.Halted = v
	h.mu.Unlock()
}

// SetCycle records the outcome of the latest evaluation cycle.
func (h *HealthStatus) SetCycle(mode string, at time.Time) {
	h.mu.Lock()
	h.LastMode = mode
	h.LastCycleAt = at
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckStore pings a SQL store and records latency + health.
func (h *HealthStatus) CheckStore(ctx context.Context, db Pinger) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.StoreOK = err == nil
	h.StoreLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Either dependency
// may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, db Pinger, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if db != nil {
					h.CheckStore(probeCtx, db)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	feedFresh := h.FeedConnected && !h.LastTickTime.IsZero() &&
		(h.MaxTickAge <= 0 || time.Since(h.LastTickTime) <= h.MaxTickAge)

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !feedFresh || !h.StoreOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !feedFresh && !h.StoreOK {
		overallStatus = "unhealthy"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		FeedConnected  bool    `json:"feed_connected"`
		LastTickTime   string  `json:"last_tick_time"`
		TickAge        string  `json:"tick_age"`
		RedisConnected bool    `json:"redis_connected"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
		StoreOK        bool    `json:"store_ok"`
		StoreLatencyMs float64 `json:"store_latency_ms"`
		Halted         bool    `json:"halted"`
		LastMode       string  `json:"last_mode"`
		LastCycleAt    string  `json:"last_cycle_at"`
		LastCheckAt    string  `json:"last_check_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:  h.FeedConnected,
		LastTickTime:   h.LastTickTime.Format(time.RFC3339),
		TickAge:        tickAge,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		StoreOK:        h.StoreOK,
		StoreLatencyMs: h.StoreLatencyMs,
		Halted:         h.Halted,
		LastMode:       h.LastMode,
		LastCycleAt:    h.LastCycleAt.Format(time.RFC3339),
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs the HTTP surface (metrics, health, status, control).
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a server for handler.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
