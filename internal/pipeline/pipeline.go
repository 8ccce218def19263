// Package pipeline wires the claims source, the signal generator, the
// benchmark and the batch runner into one backtest run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"claimsignal/internal/backtest"
	"claimsignal/internal/batch"
	"claimsignal/internal/domain"
	"claimsignal/internal/gather"
	"claimsignal/internal/signal"
	"claimsignal/internal/store"
	"claimsignal/internal/util"
)

// Config holds everything one run needs besides its data sources.
type Config struct {
	SeriesID   string
	Benchmark  string
	Symbols    []string
	Thresholds signal.Thresholds
	MaxWorkers int
	// Start and End clamp the raw claims observations. Zero means open.
	Start time.Time
	End   time.Time
}

// Pipeline runs the full claims-momentum backtest.
type Pipeline struct {
	cfg     Config
	claims  gather.ClaimsSource
	prices  gather.PriceSource
	runs    store.RunStore
	metrics *batch.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRunStore records every completed run in s.
func WithRunStore(s store.RunStore) Option {
	return func(p *Pipeline) { p.runs = s }
}

// WithMetrics passes m to the batch runner.
func WithMetrics(m *batch.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New creates a Pipeline.
func New(cfg Config, claims gather.ClaimsSource, prices gather.PriceSource, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		claims: claims,
		prices: prices,
		log:    slog.Default().With("component", "pipeline"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Output is the product of a run.
type Output struct {
	StartedAt time.Time
	Provider  string
	// Claims is the weekly claims series the signal was computed from.
	Claims  []domain.Point
	Signals []domain.SignalPoint
	Report  *batch.Report
	// RunID is the history row id, 0 when history is disabled or failed.
	RunID int64
}

// Signals fetches the claims series, resamples it to the weekly anchor and
// derives the signal series.
func (p *Pipeline) Signals(ctx context.Context) ([]domain.Point, []domain.SignalPoint, error) {
	raw, err := p.claims.FetchSeries(ctx, p.cfg.SeriesID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching claims series %s: %w", p.cfg.SeriesID, err)
	}
	weekly := util.ResampleFill(clamp(raw, p.cfg.Start, p.cfg.End))
	if len(weekly) < 2 {
		return nil, nil, fmt.Errorf("claims series %s: %w: %d weekly observations",
			p.cfg.SeriesID, backtest.ErrDataUnavailable, len(weekly))
	}
	signals := signal.NewGenerator(p.cfg.Thresholds).Generate(weekly)
	p.log.Info("generated signal",
		"series", p.cfg.SeriesID,
		"weeks", len(weekly),
		"from", weekly[0].Date.Format(time.DateOnly),
		"to", weekly[len(weekly)-1].Date.Format(time.DateOnly),
	)
	return weekly, signals, nil
}

// Run computes the signal, the benchmark, and every instrument's backtest.
// Claims or benchmark failures abort the run; instrument failures become
// skips in the report.
func (p *Pipeline) Run(ctx context.Context) (*Output, error) {
	out := &Output{StartedAt: p.now().UTC(), Provider: p.prices.Name()}

	claims, signals, err := p.Signals(ctx)
	if err != nil {
		return nil, err
	}
	out.Claims, out.Signals = claims, signals

	// Prices cover the same window as the claims series.
	start, end := claims[0].Date, claims[len(claims)-1].Date

	bench, err := p.benchmark(ctx, start, end)
	if err != nil {
		return nil, err
	}
	p.log.Info("benchmark", "symbol", bench.Symbol, "cagr", bench.CAGR, "weeks", bench.Weeks())

	runner := batch.NewRunner(batch.Config{
		Symbols:    p.cfg.Symbols,
		Start:      start,
		End:        end,
		MaxWorkers: p.cfg.MaxWorkers,
	}, p.prices, batch.WithMetrics(p.metrics), batch.WithLogger(p.log))

	rep, err := runner.Run(ctx, signals, bench)
	if err != nil {
		return nil, err
	}
	out.Report = rep

	if p.runs != nil {
		id, err := p.runs.SaveRun(ctx, toRecord(out, p.cfg.SeriesID))
		if err != nil {
			p.log.Error("saving run history", "error", err)
		} else {
			out.RunID = id
		}
	}
	return out, nil
}

func (p *Pipeline) benchmark(ctx context.Context, start, end time.Time) (*backtest.BenchmarkResult, error) {
	bars, err := p.prices.FetchBars(ctx, p.cfg.Benchmark, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching benchmark %s: %w", p.cfg.Benchmark, err)
	}
	bench, err := backtest.Benchmark(p.cfg.Benchmark, domain.ClosePoints(bars))
	if err != nil {
		return nil, fmt.Errorf("benchmark: %w", err)
	}
	return bench, nil
}

// clamp keeps points within [start, end]; zero bounds are open.
func clamp(points []domain.Point, start, end time.Time) []domain.Point {
	if start.IsZero() && end.IsZero() {
		return points
	}
	out := make([]domain.Point, 0, len(points))
	for _, pt := range points {
		if !start.IsZero() && pt.Date.Before(start) {
			continue
		}
		if !end.IsZero() && pt.Date.After(end) {
			continue
		}
		out = append(out, pt)
	}
	return out
}

func toRecord(out *Output, seriesID string) *store.RunRecord {
	rep := out.Report
	rec := &store.RunRecord{
		StartedAt:     out.StartedAt,
		Provider:      out.Provider,
		SeriesID:      seriesID,
		Benchmark:     rep.Benchmark.Symbol,
		BenchmarkCAGR: rep.Benchmark.CAGR,
	}
	for _, sym := range rep.Order {
		r := rep.Results[sym]
		rec.Results = append(rec.Results, store.ResultRecord{
			Symbol:      sym,
			Weeks:       r.Weeks(),
			CAGR:        r.CAGR,
			Sharpe:      r.Sharpe,
			Alpha:       r.Alpha,
			BuyHoldCAGR: r.BuyHoldCAGR,
			MaxDrawdown: r.MaxDrawdown,
		})
	}
	for _, sk := range rep.Skips {
		rec.Skips = append(rec.Skips, store.SkipRecord{Symbol: sk.Symbol, Kind: string(sk.Kind), Reason: sk.Reason})
	}
	return rec
}
