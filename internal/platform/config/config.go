// Package config loads process configuration from .env, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DBConfig selects and addresses the persistent store.
type DBConfig struct {
	Driver        string // postgres | sqlite
	DSN           string
	Host          string
	Port          string
	User          string
	Password      string
	Name          string
	Path          string
	RunMigrations bool
}

// RedisConfig addresses the optional Redis instance. An empty Host disables Redis.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// ProviderConfig holds market-data provider credentials and limits.
type ProviderConfig struct {
	TwelveDataAPIKey    string
	TwelveDataBaseURL   string
	YahooBaseURL        string
	ExchangeRateBaseURL string
	Timeout             time.Duration
	RatePerMinute       int
}

// EngineConfig tunes caching, tracking and synchronization.
type EngineConfig struct {
	BaseCurrency           string
	LiveUpdateSchedule     string
	HistoricalSyncSchedule string
	MaintenanceSchedule    string
	PriceFreshnessTTL      time.Duration
	FXFreshnessTTL         time.Duration
	TrackingExpiry         time.Duration
	SyncInterval           time.Duration
	BackfillMinRows        int
	BackfillLookback       time.Duration
	HistoryRetention       time.Duration
	WorkerConcurrency      int
}

// Config is the full process configuration.
type Config struct {
	HTTPAddr  string
	LogFormat string
	LogLevel  string
	DB        DBConfig
	Redis     RedisConfig
	Providers ProviderConfig
	Engine    EngineConfig
}

var defaults = map[string]string{
	"HTTP_ADDR":                ":8080",
	"LOG_FORMAT":               "text",
	"LOG_LEVEL":                "info",
	"DB_DRIVER":                "sqlite",
	"DB_PORT":                  "5432",
	"DB_PATH":                  "./prices.db",
	"REDIS_PORT":               "6379",
	"TWELVE_DATA_BASE_URL":     "https://api.twelvedata.com",
	"YAHOO_BASE_URL":           "https://query1.finance.yahoo.com",
	"EXCHANGE_RATE_BASE_URL":   "https://api.exchangerate-api.com",
	"PROVIDER_TIMEOUT":         "8s",
	"PROVIDER_RATE_PER_MINUTE": "60",
	"BASE_CURRENCY":            "ILS",
	"LIVE_UPDATE_SCHEDULE":     "@every 15m",
	"HISTORICAL_SYNC_SCHEDULE": "@every 3h",
	"MAINTENANCE_SCHEDULE":     "@every 24h",
	"PRICE_FRESHNESS_TTL":      "24h",
	"FX_FRESHNESS_TTL":         "15m",
	"TRACKING_EXPIRY":          "30d",
	"SYNC_INTERVAL":            "3h",
	"BACKFILL_MIN_ROWS":        "50",
	"BACKFILL_LOOKBACK":        "365d",
	"HISTORY_RETENTION":        "365d",
	"WORKER_CONCURRENCY":       "4",
}

// source resolves keys with environment > YAML file > defaults precedence.
type source struct {
	file map[string]string
	errs []error
}

func (s *source) str(key string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := s.file[key]; ok && v != "" {
		return strings.TrimSpace(v)
	}
	return defaults[key]
}

func (s *source) int(key string) int {
	v := s.str(key)
	n, err := strconv.Atoi(v)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: invalid integer %q", key, v))
	}
	return n
}

func (s *source) bool(key string) bool {
	v := s.str(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
	}
	return b
}

func (s *source) duration(key string) time.Duration {
	v := s.str(key)
	d, err := ParseDuration(v)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: %w", key, err))
	}
	return d
}

// ParseDuration extends time.ParseDuration with a whole-day "d" unit, e.g. "30d".
func ParseDuration(v string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

// Load reads configuration. A missing .env file is not an error; CONFIG_FILE, when set, must exist.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env not found; using system environment variables")
	}

	s := &source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &s.file); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		HTTPAddr:  s.str("HTTP_ADDR"),
		LogFormat: s.str("LOG_FORMAT"),
		LogLevel:  s.str("LOG_LEVEL"),
		DB: DBConfig{
			Driver:        strings.ToLower(s.str("DB_DRIVER")),
			DSN:           s.str("DB_DSN"),
			Host:          s.str("DB_HOST"),
			Port:          s.str("DB_PORT"),
			User:          s.str("DB_USER"),
			Password:      s.str("DB_PASSWORD"),
			Name:          s.str("DB_NAME"),
			Path:          s.str("DB_PATH"),
			RunMigrations: s.bool("RUN_MIGRATIONS"),
		},
		Redis: RedisConfig{
			Host:     s.str("REDIS_HOST"),
			Port:     s.str("REDIS_PORT"),
			Password: s.str("REDIS_PASSWORD"),
		},
		Providers: ProviderConfig{
			TwelveDataAPIKey:    s.str("TWELVE_DATA_API_KEY"),
			TwelveDataBaseURL:   s.str("TWELVE_DATA_BASE_URL"),
			YahooBaseURL:        s.str("YAHOO_BASE_URL"),
			ExchangeRateBaseURL: s.str("EXCHANGE_RATE_BASE_URL"),
			Timeout:             s.duration("PROVIDER_TIMEOUT"),
			RatePerMinute:       s.int("PROVIDER_RATE_PER_MINUTE"),
		},
		Engine: EngineConfig{
			BaseCurrency:           strings.ToUpper(s.str("BASE_CURRENCY")),
			LiveUpdateSchedule:     s.str("LIVE_UPDATE_SCHEDULE"),
			HistoricalSyncSchedule: s.str("HISTORICAL_SYNC_SCHEDULE"),
			MaintenanceSchedule:    s.str("MAINTENANCE_SCHEDULE"),
			PriceFreshnessTTL:      s.duration("PRICE_FRESHNESS_TTL"),
			FXFreshnessTTL:         s.duration("FX_FRESHNESS_TTL"),
			TrackingExpiry:         s.duration("TRACKING_EXPIRY"),
			SyncInterval:           s.duration("SYNC_INTERVAL"),
			BackfillMinRows:        s.int("BACKFILL_MIN_ROWS"),
			BackfillLookback:       s.duration("BACKFILL_LOOKBACK"),
			HistoryRetention:       s.duration("HISTORY_RETENTION"),
			WorkerConcurrency:      s.int("WORKER_CONCURRENCY"),
		},
	}
	if len(s.errs) > 0 {
		return nil, errors.Join(s.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and schedule syntax.
func (c *Config) Validate() error {
	var errs []error
	switch c.DB.Driver {
	case "postgres":
		if c.DB.DSN == "" && (c.DB.Host == "" || c.DB.Name == "") {
			errs = append(errs, errors.New("postgres requires DB_DSN or DB_HOST and DB_NAME"))
		}
	case "sqlite":
		if c.DB.Path == "" {
			errs = append(errs, errors.New("sqlite requires DB_PATH"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER: unsupported driver %q", c.DB.Driver))
	}
	if len(c.Engine.BaseCurrency) != 3 {
		errs = append(errs, fmt.Errorf("BASE_CURRENCY: %q is not a 3-letter code", c.Engine.BaseCurrency))
	}
	for key, spec := range map[string]string{
		"LIVE_UPDATE_SCHEDULE":     c.Engine.LiveUpdateSchedule,
		"HISTORICAL_SYNC_SCHEDULE": c.Engine.HistoricalSyncSchedule,
		"MAINTENANCE_SCHEDULE":     c.Engine.MaintenanceSchedule,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	for key, d := range map[string]time.Duration{
		"PROVIDER_TIMEOUT":    c.Providers.Timeout,
		"PRICE_FRESHNESS_TTL": c.Engine.PriceFreshnessTTL,
		"FX_FRESHNESS_TTL":    c.Engine.FXFreshnessTTL,
		"TRACKING_EXPIRY":     c.Engine.TrackingExpiry,
		"SYNC_INTERVAL":       c.Engine.SyncInterval,
		"BACKFILL_LOOKBACK":   c.Engine.BackfillLookback,
		"HISTORY_RETENTION":   c.Engine.HistoryRetention,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if c.Engine.WorkerConcurrency < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be at least 1"))
	}
	if c.Engine.BackfillMinRows < 0 {
		errs = append(errs, errors.New("BACKFILL_MIN_ROWS must not be negative"))
	}
	if c.Providers.RatePerMinute < 1 {
		errs = append(errs, errors.New("PROVIDER_RATE_PER_MINUTE must be at least 1"))
	}
	return errors.Join(errs...)
}
