package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"alphabot/internal/indicator"
	"alphabot/internal/portfolio"
	"alphabot/internal/strategy"
)

// Config holds all application configuration loaded from the environment
// and the optional strategy file.
type Config struct {
	// Asset
	Asset      string // pool asset, e.g. "BTC.BTC"
	CrossRefID string // reference feed id, e.g. "bitcoin"; empty disables the check
	QuoteChain string // wallet chain holding the quote asset
	BaseChain  string // wallet chain holding the traded asset

	// Price sources
	FeedSource   string // "pool" or "ws"
	PoolURL      string
	PriceWSURL   string
	CoinGeckoURL string

	// Halt sources
	ThornodeURL  string // empty disables the mimir check
	HaltRedisKey string // empty disables the Redis flag

	// Infrastructure
	StoreBackend  string // "sqlite", "redis", "postgres" or "memory"
	SQLitePath    string
	JournalPath   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string
	MetricsAddr   string
	LogLevel      string

	// Operator surface
	ControlOTPSecret string
	TelegramToken    string
	TelegramChatID   string
	WebhookURL       string
	WebhookToken     string

	// Timing
	BaseInterval time.Duration
	HoldPause    time.Duration
	SettleDelay  time.Duration
	StatusCron   string
	PersistCron  string

	// Capacity
	MinWarmup      int
	SeriesCapacity int
	PositionCap    int

	// Paper trading
	PaperQuote  decimal.Decimal
	PaperBase   decimal.Decimal
	SlippageBps int64

	// Thresholds
	StrategyFile string
	Strategy     strategy.Config
	Indicator    indicator.Config
	Risk         portfolio.RiskLimits
}

// Load reads .env (if present), the environment, and STRATEGY_FILE (if set).
func Load() (*Config, error) {
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var errs []error
	dur := func(key string, fallback time.Duration) time.Duration {
		d, err := parseDuration(getEnv(key, ""), fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	num := func(key string, fallback int) int {
		n, err := parseInt(getEnv(key, ""), fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return n
	}
	dec := func(key string, fallback decimal.Decimal) decimal.Decimal {
		d, err := parseDecimal(getEnv(key, ""), fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}

	cfg := &Config{
		Asset:      getEnv("ASSET", "BTC.BTC"),
		CrossRefID: getEnv("CROSS_REF_ID", "bitcoin"),
		QuoteChain: getEnv("QUOTE_CHAIN", "BNB.BUSD"),
		BaseChain:  getEnv("BASE_CHAIN", "BTC/BTC"),

		FeedSource:   strings.ToLower(getEnv("FEED_SOURCE", "pool")),
		PoolURL:      getEnv("MIDGARD_URL", "https://midgard.ninerealms.com"),
		PriceWSURL:   getEnv("PRICE_WS_URL", "ws://localhost:9001/ws"),
		CoinGeckoURL: getEnv("COINGECKO_URL", "https://api.coingecko.com"),

		ThornodeURL:  getEnv("THORNODE_URL", ""),
		HaltRedisKey: getEnv("HALT_REDIS_KEY", ""),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		SQLitePath:    getEnv("SQLITE_PATH", "data/alphabot.db"),
		JournalPath:   getEnv("JOURNAL_PATH", "data/trades.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       num("REDIS_DB", 0),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		ControlOTPSecret: getEnv("CONTROL_OTP_SECRET", ""),
		TelegramToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		WebhookToken:     getEnv("WEBHOOK_TOKEN", ""),

		BaseInterval: dur("BASE_INTERVAL", time.Minute),
		HoldPause:    dur("HOLD_PAUSE", time.Minute),
		SettleDelay:  dur("SETTLE_DELAY", 12*time.Second),
		StatusCron:   getEnv("STATUS_CRON", "@every 10m"),
		PersistCron:  getEnv("PERSIST_CRON", "@every 1m"),

		MinWarmup:      num("MIN_WARMUP", 72),
		SeriesCapacity: num("SERIES_CAPACITY", 1080),
		PositionCap:    num("POSITION_CAP", 500),

		PaperQuote:  dec("PAPER_QUOTE", decimal.NewFromInt(1000)),
		PaperBase:   dec("PAPER_BASE", decimal.Zero),
		SlippageBps: int64(num("SLIPPAGE_BPS", 5)),

		StrategyFile: getEnv("STRATEGY_FILE", ""),
		Strategy:     strategy.DefaultConfig(),
		Indicator:    indicator.DefaultConfig(),
		Risk:         portfolio.DefaultRiskLimits(),
	}

	cfg.Risk.Cooldown = dur("COOLDOWN", cfg.Risk.Cooldown)
	cfg.Risk.TradeSize = dec("TRADE_SIZE", cfg.Risk.TradeSize)
	cfg.Risk.SellBuffer = dec("SELL_BUFFER", cfg.Risk.SellBuffer)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.StrategyFile != "" {
		if err := cfg.ApplyStrategyFile(cfg.StrategyFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StrategyFile is the YAML overlay for thresholds. Omitted fields keep
// their current values.
type StrategyFile struct {
	Strategy  *strategy.Config  `yaml:"strategy"`
	Indicator *indicator.Config `yaml:"indicator"`
	Risk      *struct {
		Cooldown   string `yaml:"cooldown"`
		TradeSize  string `yaml:"trade_size"`
		SellBuffer string `yaml:"sell_buffer"`
	} `yaml:"risk"`
	Timing *struct {
		HoldPause   string `yaml:"hold_pause"`
		SettleDelay string `yaml:"settle_delay"`
		MinWarmup   int    `yaml:"min_warmup"`
	} `yaml:"timing"`
}

// ApplyStrategyFile overlays the YAML file at path onto c.
func (c *Config) ApplyStrategyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read strategy file: %w", err)
	}

	// decode into copies so omitted keys keep current values
	st, ind := c.Strategy, c.Indicator
	f := StrategyFile{Strategy: &st, Indicator: &ind}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse strategy file: %w", err)
	}
	c.Strategy, c.Indicator = st, ind

	if r := f.Risk; r != nil {
		if c.Risk.Cooldown, err = parseDuration(r.Cooldown, c.Risk.Cooldown); err != nil {
			return fmt.Errorf("strategy file risk.cooldown: %w", err)
		}
		if c.Risk.TradeSize, err = parseDecimal(r.TradeSize, c.Risk.TradeSize); err != nil {
			return fmt.Errorf("strategy file risk.trade_size: %w", err)
		}
		if c.Risk.SellBuffer, err = parseDecimal(r.SellBuffer, c.Risk.SellBuffer); err != nil {
			return fmt.Errorf("strategy file risk.sell_buffer: %w", err)
		}
	}
	if tm := f.Timing; tm != nil {
		if c.HoldPause, err = parseDuration(tm.HoldPause, c.HoldPause); err != nil {
			return fmt.Errorf("strategy file timing.hold_pause: %w", err)
		}
		if c.SettleDelay, err = parseDuration(tm.SettleDelay, c.SettleDelay); err != nil {
			return fmt.Errorf("strategy file timing.settle_delay: %w", err)
		}
		if tm.MinWarmup > 0 {
			c.MinWarmup = tm.MinWarmup
		}
	}

	log.Printf("[config] applied strategy file %s", path)
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.FeedSource {
	case "pool", "ws":
	default:
		return fmt.Errorf("config: unknown FEED_SOURCE %q", c.FeedSource)
	}
	switch c.StoreBackend {
	case "sqlite", "redis", "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.StoreBackend == "postgres" && c.PostgresDSN == "" {
		return errors.New("config: POSTGRES_DSN required for postgres store")
	}
	if c.BaseInterval <= 0 {
		return errors.New("config: BASE_INTERVAL must be positive")
	}
	if !c.Risk.TradeSize.IsPositive() {
		return errors.New("config: TRADE_SIZE must be positive")
	}
	if c.SeriesCapacity < c.MinWarmup {
		return fmt.Errorf("config: SERIES_CAPACITY %d below MIN_WARMUP %d", c.SeriesCapacity, c.MinWarmup)
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s = strings.TrimSpace(s); s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback, err
	}
	return d, nil
}

func parseInt(s string, fallback int) (int, error) {
	if s = strings.TrimSpace(s); s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback, err
	}
	return n, nil
}

func parseDecimal(s string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if s = strings.TrimSpace(s); s == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fallback, err
	}
	return d, nil
}
