package batch

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"claimsignal/internal/backtest"
	"claimsignal/internal/domain"
	"claimsignal/internal/gather"
)

var w0 = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC) // a Friday

func week(i int) time.Time { return w0.AddDate(0, 0, 7*i) }

type fakePrices struct {
	mu    sync.Mutex
	bars  map[string][]domain.Bar
	errs  map[string]error
	calls map[string]int
}

func (f *fakePrices) Name() string { return "fake" }

func (f *fakePrices) FetchBars(_ context.Context, symbol string, _, _ time.Time) ([]domain.Bar, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[symbol]++
	f.mu.Unlock()

	if symbol == "BOOM" {
		panic("index out of range")
	}
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.bars[symbol], nil
}

// weeklyBars returns one Friday bar per week with the given closes.
func weeklyBars(symbol string, closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Symbol: symbol, Timestamp: week(i), Close: c}
	}
	return bars
}

// alternatingSignals is Long on even weeks and Flat on odd weeks.
func alternatingSignals(n int) []domain.SignalPoint {
	sigs := make([]domain.SignalPoint, n)
	for i := range sigs {
		state := domain.SignalLong
		if i%2 == 1 {
			state = domain.SignalFlat
		}
		sigs[i] = domain.SignalPoint{Date: week(i), Claims: 200000, ChangePct: -3, HasChange: true, State: state}
	}
	return sigs
}

func benchmark() *backtest.BenchmarkResult {
	return &backtest.BenchmarkResult{Symbol: "SPY", CAGR: 0.05}
}

func TestRunSkipsAndContinues(t *testing.T) {
	prices := &fakePrices{
		bars: map[string][]domain.Bar{
			"XLY": weeklyBars("XLY", 100, 102, 101, 105, 107, 104),
			"XLF": weeklyBars("XLF", 30, 31, 32, 31, 33, 34),
		},
		errs: map[string]error{
			"TSLA": &gather.ProviderError{Provider: "fake", Symbol: "TSLA", Err: errors.New("429 too many requests")},
		},
	}
	cfg := Config{Symbols: []string{"XLY", "ZZZZ", "TSLA", "XLF"}, MaxWorkers: 2}

	rep, err := NewRunner(cfg, prices).Run(context.Background(), alternatingSignals(6), benchmark())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !reflect.DeepEqual(rep.Order, []string{"XLY", "XLF"}) {
		t.Errorf("Order = %v, want [XLY XLF]", rep.Order)
	}
	if len(rep.Results) != 2 {
		t.Errorf("len(Results) = %d, want 2", len(rep.Results))
	}
	if _, ok := rep.Results["ZZZZ"]; ok {
		t.Error("Results contains ZZZZ, which had no price data")
	}
	if len(rep.Skips) != 2 {
		t.Fatalf("Skips = %+v, want 2 entries", rep.Skips)
	}
	if rep.Skips[0].Symbol != "ZZZZ" || rep.Skips[0].Kind != SkipDataUnavailable {
		t.Errorf("Skips[0] = %+v, want ZZZZ data-unavailable", rep.Skips[0])
	}
	if rep.Skips[1].Symbol != "TSLA" || rep.Skips[1].Kind != SkipProviderFailure {
		t.Errorf("Skips[1] = %+v, want TSLA provider-failure", rep.Skips[1])
	}

	res := rep.Results["XLY"]
	if res.Alpha != res.CAGR-0.05 {
		t.Errorf("Alpha = %v, want CAGR - 0.05 = %v", res.Alpha, res.CAGR-0.05)
	}
	if rep.Benchmark.Symbol != "SPY" {
		t.Errorf("Benchmark.Symbol = %q, want SPY", rep.Benchmark.Symbol)
	}
}

func TestRunIndependentOfConcurrency(t *testing.T) {
	prices := &fakePrices{bars: map[string][]domain.Bar{
		"XLY": weeklyBars("XLY", 100, 102, 101, 105, 107, 104),
		"IWM": weeklyBars("IWM", 200, 190, 195, 205, 210, 200),
		"CAT": weeklyBars("CAT", 300, 310, 305, 290, 300, 320),
		"HD":  weeklyBars("HD", 350, 355, 360, 340, 345, 365),
	}}
	symbols := []string{"XLY", "IWM", "CAT", "HD"}
	sigs := alternatingSignals(6)

	serial, err := NewRunner(Config{Symbols: symbols, MaxWorkers: 1}, prices).Run(context.Background(), sigs, benchmark())
	if err != nil {
		t.Fatalf("Run (serial): %v", err)
	}
	parallel, err := NewRunner(Config{Symbols: symbols, MaxWorkers: 4}, prices).Run(context.Background(), sigs, benchmark())
	if err != nil {
		t.Fatalf("Run (parallel): %v", err)
	}
	if !reflect.DeepEqual(serial, parallel) {
		t.Error("serial and parallel reports differ")
	}
}

func TestEvaluateRecoversPanic(t *testing.T) {
	r := NewRunner(Config{}, &fakePrices{})
	out := r.Evaluate(context.Background(), "BOOM", alternatingSignals(4), 0)
	if out.OK() {
		t.Fatal("Evaluate(BOOM) returned a result")
	}
	if out.Skip.Kind != SkipComputation {
		t.Errorf("Skip.Kind = %q, want %q", out.Skip.Kind, SkipComputation)
	}
}

func TestEvaluateInvalidSymbol(t *testing.T) {
	prices := &fakePrices{}
	out := NewRunner(Config{}, prices).Evaluate(context.Background(), "../etc", alternatingSignals(4), 0)
	if out.OK() || out.Skip.Kind != SkipDataUnavailable {
		t.Errorf("Evaluate(../etc) = %+v, want data-unavailable skip", out)
	}
	if prices.calls["../etc"] != 0 {
		t.Error("price source was called for an invalid symbol")
	}
}

func TestEvaluateSingleWeekIsUnavailable(t *testing.T) {
	prices := &fakePrices{bars: map[string][]domain.Bar{"JPM": weeklyBars("JPM", 170)}}
	out := NewRunner(Config{}, prices).Evaluate(context.Background(), "JPM", alternatingSignals(4), 0)
	if out.OK() || out.Skip.Kind != SkipDataUnavailable {
		t.Errorf("Evaluate(JPM) = %+v, want data-unavailable skip", out)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(Config{Symbols: []string{"XLY"}}, &fakePrices{}).Run(ctx, alternatingSignals(4), benchmark())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestRunRequiresBenchmark(t *testing.T) {
	if _, err := NewRunner(Config{}, &fakePrices{}).Run(context.Background(), nil, nil); err == nil {
		t.Error("Run with nil benchmark returned nil error")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	prices := &fakePrices{bars: map[string][]domain.Bar{
		"WFC": weeklyBars("WFC", 50, 51, 52, 53),
	}}
	cfg := Config{Symbols: []string{"WFC", "ZZZZ"}, MaxWorkers: 2}

	if _, err := NewRunner(cfg, prices, WithMetrics(m)).Run(context.Background(), alternatingSignals(4), benchmark()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := testutil.ToFloat64(m.evaluated.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.evaluated.WithLabelValues(string(SkipDataUnavailable))); got != 1 {
		t.Errorf("data-unavailable count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.cagr); got != 1 {
		t.Errorf("cagr series = %d, want 1", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want SkipKind
	}{
		{backtest.ErrDataUnavailable, SkipDataUnavailable},
		{errors.New("wrapped: " + backtest.ErrDataUnavailable.Error()), SkipComputation},
		{&gather.ProviderError{Provider: "yahoo", Symbol: "X", Err: errors.New("timeout")}, SkipProviderFailure},
		{errors.New("division by zero"), SkipComputation},
	}
	for _, tt := range tests {
		if got := Classify("X", tt.err).Kind; got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
