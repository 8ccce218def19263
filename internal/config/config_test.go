package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable applyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "FRED_API_KEY",
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_DATA_URL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"LOG_LEVEL", "PRICE_PROVIDER", "TICKERS",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claimsignal.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, "prices:\n  provider: yahoo\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataDir != "data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "data")
	}
	if cfg.Backtest.SeriesID != "ICSA" {
		t.Errorf("Backtest.SeriesID = %q, want %q", cfg.Backtest.SeriesID, "ICSA")
	}
	if cfg.Backtest.Benchmark != "SPY" {
		t.Errorf("Backtest.Benchmark = %q, want %q", cfg.Backtest.Benchmark, "SPY")
	}
	want := "XLY XLF IWM AMZN TSLA HD JPM WFC CAT"
	if got := strings.Join(cfg.Backtest.Tickers, " "); got != want {
		t.Errorf("Backtest.Tickers = %q, want %q", got, want)
	}
	if cfg.Backtest.LongBelow != -2 || cfg.Backtest.FlatAbove != 2 {
		t.Errorf("thresholds = (%v, %v), want (-2, 2)", cfg.Backtest.LongBelow, cfg.Backtest.FlatAbove)
	}
	if cfg.Backtest.MaxWorkers != 4 {
		t.Errorf("Backtest.MaxWorkers = %d, want 4", cfg.Backtest.MaxWorkers)
	}
	if cfg.Prices.Breaker.Cooldown != 30*time.Second {
		t.Errorf("Prices.Breaker.Cooldown = %v, want 30s", cfg.Prices.Breaker.Cooldown)
	}
	if !cfg.Prices.Cache {
		t.Error("Prices.Cache = false, want true")
	}
	if cfg.Alpaca.Feed != "iex" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "iex")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
storage:
  data_dir: "/tmp/claims/data"
  sqlite_path: "/tmp/claims/runs.db"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  feed: "sip"
prices:
  provider: alpaca
  breaker:
    max_failures: 5
    cooldown: 1m
backtest:
  tickers: [XLF, JPM]
  start_date: "2010-01-01"
  end_date: "2020-12-31"
  long_below: -3.5
  flat_above: 1.5
  max_workers: 2
logging:
  level: debug
  format: json
report:
  csv_path: "out/cumulative.csv"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.SQLitePath != "/tmp/claims/runs.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/claims/runs.db")
	}
	if cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "sip")
	}
	if cfg.Prices.Breaker.MaxFailures != 5 {
		t.Errorf("Prices.Breaker.MaxFailures = %d, want 5", cfg.Prices.Breaker.MaxFailures)
	}
	if cfg.Prices.Breaker.Cooldown != time.Minute {
		t.Errorf("Prices.Breaker.Cooldown = %v, want 1m", cfg.Prices.Breaker.Cooldown)
	}
	if len(cfg.Backtest.Tickers) != 2 || cfg.Backtest.Tickers[1] != "JPM" {
		t.Errorf("Backtest.Tickers = %v, want [XLF JPM]", cfg.Backtest.Tickers)
	}
	if cfg.Backtest.LongBelow != -3.5 {
		t.Errorf("Backtest.LongBelow = %v, want -3.5", cfg.Backtest.LongBelow)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Backtest.Benchmark != "SPY" {
		t.Errorf("Backtest.Benchmark = %q, want %q", cfg.Backtest.Benchmark, "SPY")
	}
	if cfg.Report.CSVPath != "out/cumulative.csv" || !cfg.Report.History {
		t.Errorf("Report = %+v, want csv path set and history on", cfg.Report)
	}

	start, end, err := cfg.Backtest.Window()
	if err != nil {
		t.Fatalf("Window() returned error: %v", err)
	}
	if start != time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("start = %v, want 2010-01-01", start)
	}
	if end != time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC) {
		t.Errorf("end = %v, want 2020-12-31", end)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("TICKERS", " wfc, hd ,,")
	t.Setenv("FRED_API_KEY", "fred-key")
	t.Setenv("LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if got := strings.Join(cfg.Backtest.Tickers, ","); got != "WFC,HD" {
		t.Errorf("Backtest.Tickers = %q, want %q", got, "WFC,HD")
	}
	if cfg.FRED.APIKey != "fred-key" {
		t.Errorf("FRED.APIKey = %q, want %q", cfg.FRED.APIKey, "fred-key")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}

	// Canonical SDK names win.
	t.Setenv("APCA_API_KEY_ID", "apca-key")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "apca-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "apca-key")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRICE_PROVIDER", "yahoo")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if cfg.Prices.Provider != "yahoo" {
		t.Errorf("Prices.Provider = %q, want %q", cfg.Prices.Provider, "yahoo")
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() on a missing file returned nil error")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown provider", "prices:\n  provider: stooq\n"},
		{"inverted thresholds", "prices:\n  provider: yahoo\nbacktest:\n  long_below: 3\n  flat_above: 1\n"},
		{"zero workers", "prices:\n  provider: yahoo\nbacktest:\n  max_workers: 0\n"},
		{"bad date", "prices:\n  provider: yahoo\nbacktest:\n  start_date: 2020/01/01\n"},
		{"end before start", "prices:\n  provider: yahoo\nbacktest:\n  start_date: \"2020-01-01\"\n  end_date: \"2019-01-01\"\n"},
		{"empty tickers", "prices:\n  provider: yahoo\nbacktest:\n  tickers: []\n"},
		{"bad log level", "prices:\n  provider: yahoo\nlogging:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("Load() returned nil error, want validation failure")
			}
		})
	}
}

func TestValidateProviderCredentials(t *testing.T) {
	clearEnv(t)

	// Load accepts missing credentials so that commands without price
	// access, or a later provider override, still work.
	cfg, err := Load(writeConfig(t, "prices:\n  provider: alpaca\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with alpaca and no credentials returned nil error")
	}

	cfg.Prices.Provider = "yahoo"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after switching to yahoo: %v", err)
	}

	cfg.Prices.Provider = "alpaca"
	cfg.Alpaca.APIKey, cfg.Alpaca.APISecret = "key", "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with credentials: %v", err)
	}

	cfg.Prices.Provider = "stooq"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with unknown provider returned nil error")
	}
}
