package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"alphabot/config"
	"alphabot/internal/api"
	"alphabot/internal/breaker"
	"alphabot/internal/control"
	"alphabot/internal/execution"
	"alphabot/internal/halt"
	"alphabot/internal/indicator"
	"alphabot/internal/logger"
	"alphabot/internal/marketdata/feed"
	"alphabot/internal/marketdata/tfbuilder"
	"alphabot/internal/metrics"
	"alphabot/internal/model"
	"alphabot/internal/notification"
	"alphabot/internal/portfolio"
	"alphabot/internal/series"
	"alphabot/internal/store"
	pgstore "alphabot/internal/store/postgres"
	redisstore "alphabot/internal/store/redis"
	sqlitestore "alphabot/internal/store/sqlite"
	"alphabot/internal/strategy"
	"alphabot/internal/trader"
	"alphabot/internal/wallet"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[alphabot] starting...")

	// ---- Load config ----
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[alphabot] config: %v", err)
	}
	slogger := logger.Init("alphabot", logger.ParseLevel(cfg.LogLevel))
	log.Printf("[alphabot] asset=%s feed=%s store=%s cooldown=%s trade_size=%s",
		cfg.Asset, cfg.FeedSource, cfg.StoreBackend, cfg.Risk.Cooldown, cfg.Risk.TradeSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus(3 * cfg.BaseInterval)

	// ---- State store ----
	st, pinger, err := openStore(ctx, cfg, prom)
	if err != nil {
		log.Fatalf("[alphabot] store: %v", err)
	}
	defer st.Close()
	health.SetStoreOK(true)

	// ---- Series + aggregation ----
	ser := series.New(cfg.SeriesCapacity)
	builder := tfbuilder.New(ser, model.DerivedTimeframes, cfg.BaseInterval)
	builder.OnAppend = func(tf model.Timeframe, n int) {
		prom.DerivedAppends.WithLabelValues(string(tf)).Add(float64(n))
		prom.SeriesLen.WithLabelValues(string(tf)).Set(float64(ser.Len(tf)))
	}
	builder.OnError = func(tf model.Timeframe, err error) {
		log.Printf("[alphabot] derive %s: %v", tf, err)
	}

	// ---- Price feed ----
	hub := api.NewHub()
	priceFeed, err := openFeed(ctx, cfg, prom, health)
	if err != nil {
		log.Fatalf("[alphabot] feed: %v", err)
	}
	poller := feed.NewPoller(priceFeed, ser, cfg.Asset, cfg.BaseInterval)
	poller.OnTick = func(t model.Tick) {
		prom.TicksTotal.Inc()
		prom.LastPrice.Set(t.Price)
		prom.SeriesLen.WithLabelValues(string(model.TF1m)).Set(float64(ser.Len(model.TF1m)))
		health.SetLastTickTime(t.TS)
		hub.Publish(api.ChannelTick, t)
	}
	poller.OnError = func(error) { prom.FeedErrors.Inc() }

	var crossRef feed.PriceFeed
	if cfg.CrossRefID != "" {
		crossRef = feed.NewCoinGecko(cfg.CoinGeckoURL, "usd")
	}

	// ---- Wallet + executor (paper) ----
	paper := wallet.NewPaper(map[string]decimal.Decimal{
		cfg.QuoteChain: cfg.PaperQuote,
		cfg.BaseChain:  cfg.PaperBase,
	})
	oracle := wallet.NewOracle(paper, ser, cfg.QuoteChain, cfg.BaseChain)
	executor := execution.NewPaperExecutor(paper, ser, cfg.QuoteChain, cfg.BaseChain, cfg.SlippageBps)

	if err := ensureParentDir(cfg.JournalPath); err != nil {
		log.Fatalf("[alphabot] journal dir: %v", err)
	}
	journal, err := execution.NewJournal(cfg.JournalPath)
	if err != nil {
		log.Fatalf("[alphabot] journal: %v", err)
	}
	defer journal.Close()

	// ---- Halt flags ----
	manual := &halt.Manual{}
	flags := halt.Any{manual}
	if cfg.ThornodeURL != "" {
		flags = append(flags, halt.NewMimir(cfg.ThornodeURL))
	}
	var haltRedis *goredis.Client
	if cfg.HaltRedisKey != "" {
		haltRedis = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer haltRedis.Close()
		flags = append(flags, halt.NewRedisFlag(haltRedis, cfg.HaltRedisKey))
	}
	health.StartLivenessChecker(ctx, haltRedis, pinger, 10*time.Second)

	// ---- Notifications ----
	notifiers := notification.Multi{notification.NewLogNotifier()}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		tg := notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		tg.Tag = cfg.Asset
		notifiers = append(notifiers, tg)
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookToken))
	}

	// ---- Decision pipeline ----
	gate := portfolio.NewGate(cfg.Risk)
	gate.OnReject = func(reason string) { prom.RiskRejections.WithLabelValues(reason).Inc() }

	cmds := control.NewChannel(0)
	lc := control.NewLifecycle()

	svc := trader.New(trader.Config{
		Asset:       cfg.Asset,
		CrossRefID:  cfg.CrossRefID,
		MinWarmup:   cfg.MinWarmup,
		HoldPause:   cfg.HoldPause,
		SettleDelay: cfg.SettleDelay,
	}, trader.Deps{
		Series:     ser,
		Indicators: indicator.NewEngine(cfg.Indicator),
		Strategy:   strategy.NewEngine(cfg.Strategy),
		Position:   portfolio.NewPosition(cfg.PositionCap),
		Gate:       gate,
		Balances:   oracle,
		Executor:   executor,
		Halt:       flags,
		Commands:   cmds,
		Lifecycle:  lc,
		CrossRef:   crossRef,
		Store:      st,
		Journal:    journal,
		Notifier:   notifiers,
		PnL:        portfolio.NewPnLTracker(),
		Metrics:    prom,
		Health:     health,
		Logger:     slogger,
	})
	svc.OnCycle = func(res trader.CycleResult) { hub.Publish(api.ChannelCycle, res) }
	svc.Restore(ctx)
	for _, tf := range model.AllTimeframes {
		prom.SeriesLen.WithLabelValues(string(tf)).Set(float64(ser.Len(tf)))
	}

	sched, err := trader.NewScheduler(svc, cfg.StatusCron, cfg.PersistCron)
	if err != nil {
		log.Fatalf("[alphabot] scheduler: %v", err)
	}

	// ---- HTTP surface ----
	ctl := control.NewHandler(cmds, lc, manual, cfg.ControlOTPSecret)
	ctl.OnCommand = func(name string) {
		notifiers.Send(context.Background(), notification.Alert{
			Level: notification.AlertWarning, Title: "operator command", Message: name,
		})
	}
	router := api.NewRouter(api.Deps{
		Status:   svc,
		Trades:   journal,
		Health:   health,
		Control:  ctl,
		Stream:   hub,
		Gatherer: prometheus.DefaultGatherer,
	})
	srv := metrics.NewServer(cfg.MetricsAddr, router)
	srv.Start()
	if cfg.ControlOTPSecret == "" {
		log.Println("[alphabot] WARNING: CONTROL_OTP_SECRET unset, control endpoints are unauthenticated")
	}

	// ---- Start loops ----
	go poller.Run(ctx)
	go builder.Run(ctx)
	sched.Start()

	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("[alphabot] received %v, shutting down...", sig)
		lc.Stop()
	case <-lc.Done():
		log.Println("[alphabot] stop requested, shutting down...")
	}

	// ---- Graceful shutdown ----
	<-done
	sched.Stop()
	cancel()
	hub.Close()

	persistCtx, persistCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer persistCancel()
	if err := svc.PersistSeries(persistCtx); err != nil {
		log.Printf("[alphabot] final persist: %v", err)
	}
	svc.Report()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Stop(shutdownCtx)
	slog.Info("alphabot stopped")
}

// ensureParentDir creates the directory holding path.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// openStore selects the persistence backend. The returned Pinger is nil
// when the backend has no database handle to probe.
func openStore(ctx context.Context, cfg *config.Config, prom *metrics.Metrics) (store.Store, metrics.Pinger, error) {
	switch cfg.StoreBackend {
	case "memory":
		log.Println("[alphabot] WARNING: memory store, state is lost on restart")
		return store.NewMemory(), nil, nil
	case "sqlite":
		if err := ensureParentDir(cfg.SQLitePath); err != nil {
			return nil, nil, err
		}
		s, err := sqlitestore.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.DB(), nil
	case "postgres":
		s, err := pgstore.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.DB(), nil
	case "redis":
		s, err := redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "alphabot:" + cfg.Asset + ":",
		})
		if err != nil {
			return nil, nil, err
		}
		s.OnBuffer = func() { prom.BufferedWrites.Inc() }
		trackBreaker(s.Breaker(), prom)
		return s, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func openFeed(ctx context.Context, cfg *config.Config, prom *metrics.Metrics, health *metrics.HealthStatus) (feed.PriceFeed, error) {
	switch cfg.FeedSource {
	case "ws":
		f, err := feed.NewWSFeed(feed.WSConfig{URL: cfg.PriceWSURL})
		if err != nil {
			return nil, err
		}
		f.OnReconnect = func() { prom.WSReconnects.Inc() }
		f.OnConnected = health.SetFeedConnected
		go f.Start(ctx)
		return f, nil
	case "pool":
		f := feed.NewPoolFeed(cfg.PoolURL)
		trackBreaker(f.Breaker(), prom)
		prev := f.Breaker().OnStateChange
		f.Breaker().OnStateChange = func(from, to breaker.State) {
			if prev != nil {
				prev(from, to)
			}
			health.SetFeedConnected(to != breaker.StateOpen)
		}
		health.SetFeedConnected(true)
		return f, nil
	}
	return nil, fmt.Errorf("unknown feed source %q", cfg.FeedSource)
}

// trackBreaker mirrors a breaker's state into the breaker gauge, keeping any
// hook already installed.
func trackBreaker(cb *breaker.Breaker, prom *metrics.Metrics) {
	g := prom.BreakerState.WithLabelValues(cb.Name())
	g.Set(float64(cb.CurrentState()))
	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to breaker.State) {
		if prev != nil {
			prev(from, to)
		}
		g.Set(float64(to))
	}
}
