// Package batch evaluates the claims signal over a basket of instruments.
// Each instrument is fetched, aligned and backtested independently; a
// failure on one becomes a recorded skip and never stops the others.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"claimsignal/internal/backtest"
	"claimsignal/internal/domain"
	"claimsignal/internal/gather"
)

// SkipKind classifies why an instrument produced no result.
type SkipKind string

const (
	SkipDataUnavailable SkipKind = "data-unavailable"
	SkipProviderFailure SkipKind = "provider-failure"
	SkipComputation     SkipKind = "computation"
)

// Skip records an instrument that produced no result.
type Skip struct {
	Symbol string
	Kind   SkipKind
	Reason string
}

// Outcome is the per-instrument result: exactly one of Result and Skip is
// set.
type Outcome struct {
	Symbol string
	Result *backtest.Result
	Skip   *Skip
}

// OK reports whether the instrument produced a result.
func (o Outcome) OK() bool { return o.Result != nil }

// Report is the outcome of a whole batch.
type Report struct {
	Benchmark *backtest.BenchmarkResult
	Results   map[string]*backtest.Result
	Skips     []Skip
	// Order lists the symbols in Results in configuration order.
	Order []string
}

// Config is the batch input. Start and End bound the price window.
type Config struct {
	Symbols    []string
	Start      time.Time
	End        time.Time
	MaxWorkers int
}

// Runner evaluates a basket of instruments against one signal series.
type Runner struct {
	cfg     Config
	prices  gather.PriceSource
	metrics *Metrics
	log     *slog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithMetrics records per-instrument outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// NewRunner creates a Runner fetching prices from prices.
func NewRunner(cfg Config, prices gather.PriceSource, opts ...Option) *Runner {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	r := &Runner{
		cfg:    cfg,
		prices: prices,
		log:    slog.Default().With("component", "batch"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run evaluates every configured instrument against signals, computing
// Alpha relative to bench. Instruments run concurrently up to MaxWorkers;
// the report does not depend on scheduling order. The only error returned
// is context cancellation.
func (r *Runner) Run(ctx context.Context, signals []domain.SignalPoint, bench *backtest.BenchmarkResult) (*Report, error) {
	if bench == nil {
		return nil, errors.New("batch: benchmark result is required")
	}

	outcomes := make([]Outcome, len(r.cfg.Symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxWorkers)

	for i, symbol := range r.cfg.Symbols {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = r.Evaluate(gctx, symbol, signals, bench.CAGR)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch cancelled: %w", err)
	}

	rep := &Report{
		Benchmark: bench,
		Results:   make(map[string]*backtest.Result, len(outcomes)),
	}
	for _, out := range outcomes {
		if out.OK() {
			rep.Results[out.Symbol] = out.Result
			rep.Order = append(rep.Order, out.Symbol)
			continue
		}
		rep.Skips = append(rep.Skips, *out.Skip)
	}
	r.log.Info("batch complete", "evaluated", len(rep.Order), "skipped", len(rep.Skips))
	return rep, nil
}

// Evaluate fetches, aligns and backtests one instrument. It never panics;
// every failure is returned as a Skip.
func (r *Runner) Evaluate(ctx context.Context, symbol string, signals []domain.SignalPoint, benchmarkCAGR float64) (out Outcome) {
	began := time.Now()
	out.Symbol = symbol
	defer func() {
		if p := recover(); p != nil {
			out.Result = nil
			out.Skip = &Skip{Symbol: symbol, Kind: SkipComputation, Reason: fmt.Sprintf("panic: %v", p)}
		}
		if out.Skip != nil {
			r.log.Warn("skipping instrument", "symbol", symbol, "kind", out.Skip.Kind, "reason", out.Skip.Reason)
		}
		r.metrics.observe(out, time.Since(began).Seconds())
	}()

	r.log.Info("Running strategy for " + symbol)
	res, err := r.evaluate(ctx, symbol, signals, benchmarkCAGR)
	if err != nil {
		skip := Classify(symbol, err)
		out.Skip = &skip
		return out
	}
	out.Result = res
	r.log.Info("instrument done",
		"symbol", symbol,
		"weeks", res.Weeks(),
		"cagr", res.CAGR,
		"sharpe", res.Sharpe,
		"alpha", res.Alpha,
	)
	return out
}

func (r *Runner) evaluate(ctx context.Context, symbol string, signals []domain.SignalPoint, benchmarkCAGR float64) (*backtest.Result, error) {
	if err := gather.ValidateSymbol(symbol); err != nil {
		return nil, fmt.Errorf("%w: %v", backtest.ErrDataUnavailable, err)
	}
	bars, err := r.prices.FetchBars(ctx, symbol, r.cfg.Start, r.cfg.End)
	if err != nil {
		return nil, gather.AsProviderError(r.prices.Name(), symbol, err)
	}
	frame, err := backtest.Align(symbol, domain.ClosePoints(bars), signals)
	if err != nil {
		return nil, err
	}
	return backtest.Run(frame, benchmarkCAGR)
}

// Classify maps an evaluation error onto a Skip.
func Classify(symbol string, err error) Skip {
	kind := SkipComputation
	var pe *gather.ProviderError
	switch {
	case errors.Is(err, backtest.ErrDataUnavailable):
		kind = SkipDataUnavailable
	case errors.As(err, &pe):
		kind = SkipProviderFailure
	}
	return Skip{Symbol: symbol, Kind: kind, Reason: err.Error()}
}
