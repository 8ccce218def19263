package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DateLayout is the layout of start_date and end_date.
const DateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for claimsignal.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	FRED     FRED     `yaml:"fred"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Yahoo    Yahoo    `yaml:"yahoo"`
	Prices   Prices   `yaml:"prices"`
	Backtest Backtest `yaml:"backtest"`
	Logging  Logging  `yaml:"logging"`
	Report   Report   `yaml:"report"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir" default:"data" validate:"required"`
	SQLitePath string `yaml:"sqlite_path" default:"data/claimsignal.db" validate:"required"`
}

// FRED configures the claims series source. Without an API key the keyless
// CSV download is used.
type FRED struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url" default:"https://api.stlouisfed.org/fred" validate:"url"`
	GraphURL        string `yaml:"graph_url" default:"https://fred.stlouisfed.org/graph/fredgraph.csv" validate:"url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min" default:"120" validate:"gte=0"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url" validate:"omitempty,url"`
	Feed      string `yaml:"feed" default:"iex" validate:"oneof=iex sip"`
}

// Yahoo configures the Yahoo Finance chart endpoint.
type Yahoo struct {
	BaseURL string `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
}

// Prices selects and tunes the instrument price provider.
type Prices struct {
	Provider        string  `yaml:"provider" default:"alpaca" validate:"oneof=alpaca yahoo"`
	Cache           bool    `yaml:"cache" default:"true"`
	RateLimitPerMin int     `yaml:"rate_limit_per_min" default:"200" validate:"gte=0"`
	Breaker         Breaker `yaml:"breaker"`
}

// Breaker configures the price provider circuit breaker.
type Breaker struct {
	MaxFailures uint32        `yaml:"max_failures" default:"3" validate:"gte=1"`
	Cooldown    time.Duration `yaml:"cooldown" default:"30s"`
}

// Backtest defines the claims series, the instrument basket, and the signal
// thresholds.
type Backtest struct {
	SeriesID   string   `yaml:"series_id" default:"ICSA" validate:"required"`
	Tickers    []string `yaml:"tickers" default:"[\"XLY\",\"XLF\",\"IWM\",\"AMZN\",\"TSLA\",\"HD\",\"JPM\",\"WFC\",\"CAT\"]" validate:"required,min=1,dive,required"`
	Benchmark  string   `yaml:"benchmark" default:"SPY" validate:"required"`
	StartDate  string   `yaml:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string   `yaml:"end_date" validate:"omitempty,datetime=2006-01-02"`
	LongBelow  float64  `yaml:"long_below" default:"-2" validate:"ltefield=FlatAbove"`
	FlatAbove  float64  `yaml:"flat_above" default:"2"`
	MaxWorkers int      `yaml:"max_workers" default:"4" validate:"min=1"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"text" validate:"oneof=text json"`
	File   string `yaml:"file"`
}

// Report controls what a run writes besides the summary table.
type Report struct {
	CSVPath string `yaml:"csv_path"`
	History bool   `yaml:"history" default:"true"`
}

// Metrics controls the Prometheus textfile export.
type Metrics struct {
	TextfilePath string `yaml:"textfile_path"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

var validate = validator.New()

// Load applies defaults, reads the YAML configuration file at the given path
// (skipped when path is empty), applies environment variable overrides, and
// checks field constraints. Provider credentials are left to Validate, which
// callers run once command-line overrides are applied.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validateFields(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints and that the selected price provider
// has its credentials. Only commands that fetch prices need it.
func (c *Config) Validate() error {
	if err := c.validateFields(); err != nil {
		return err
	}
	if c.Prices.Provider == "alpaca" && (c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "") {
		return errors.New("alpaca provider requires alpaca.api_key and alpaca.api_secret")
	}
	return nil
}

func (c *Config) validateFields() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	_, _, err := c.Backtest.Window()
	return err
}

// Window returns the parsed start and end dates. A zero time means the
// bound is open.
func (b Backtest) Window() (start, end time.Time, err error) {
	if b.StartDate != "" {
		if start, err = time.Parse(DateLayout, b.StartDate); err != nil {
			return start, end, fmt.Errorf("start_date: %w", err)
		}
	}
	if b.EndDate != "" {
		if end, err = time.Parse(DateLayout, b.EndDate); err != nil {
			return start, end, fmt.Errorf("end_date: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("end_date %s is before start_date %s", b.EndDate, b.StartDate)
	}
	return start, end, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("FRED_API_KEY"); v != "" {
		cfg.FRED.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv("PRICE_PROVIDER"); v != "" {
		cfg.Prices.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("TICKERS"); v != "" {
		cfg.Backtest.Tickers = splitTickers(v)
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

func splitTickers(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
