package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"claimsignal/internal/config"
	"claimsignal/internal/gather"
	"claimsignal/internal/gather/fred"
	"claimsignal/internal/gather/us"
	"claimsignal/internal/gather/yahoo"
	"claimsignal/internal/store"
	"claimsignal/internal/util"
)

const defaultConfigPath = "config/claimsignal.yaml"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfgPath  string
	logLevel string

	cfg     *config.Config
	log     *slog.Logger
	closers []io.Closer
}

// configPath resolves --config, then CLAIMS_CONFIG, then the default path
// when it exists. An empty result means defaults and environment only.
func (a *app) configPath() string {
	if a.cfgPath != "" {
		return a.cfgPath
	}
	if p := os.Getenv("CLAIMS_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// setup loads configuration and installs the default logger, writing to
// stdout and, when configured, a log file as well.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	var w io.Writer = os.Stdout
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		w = io.MultiWriter(os.Stdout, f)
	}
	a.log = util.NewLogger(w, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(a.log)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

func (a *app) claimsSource() gather.ClaimsSource {
	c := a.cfg.FRED
	return fred.New(fred.Config{
		APIKey:          c.APIKey,
		BaseURL:         c.BaseURL,
		GraphURL:        c.GraphURL,
		RateLimitPerMin: c.RateLimitPerMin,
	}, fred.WithLogger(a.log.With("component", "fred")))
}

// priceSource builds the configured provider behind a circuit breaker and,
// when enabled, the Parquet bar cache.
func (a *app) priceSource() gather.PriceSource {
	c := a.cfg
	var src gather.PriceSource
	switch c.Prices.Provider {
	case "yahoo":
		src = yahoo.New(c.Yahoo.BaseURL, nil, c.Prices.RateLimitPerMin)
	default:
		src = us.NewAlpacaPriceSource(c.Alpaca.APIKey, c.Alpaca.APISecret, c.Alpaca.DataURL, c.Alpaca.Feed, c.Prices.RateLimitPerMin)
	}

	src = gather.NewBreakerSource(src, gather.BreakerConfig{
		MaxFailures: c.Prices.Breaker.MaxFailures,
		Cooldown:    c.Prices.Breaker.Cooldown,
	}, a.log)

	if c.Prices.Cache {
		src = gather.NewCachedSource(src, store.NewParquetStore(c.Storage.DataDir), a.log)
	}
	return src
}

func (a *app) runStore() (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(a.cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}
	a.closers = append(a.closers, s)
	return s, nil
}
