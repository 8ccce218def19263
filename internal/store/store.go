// Package store defines storage interfaces for persisting and retrieving
// cached daily bars and the history of backtest runs.
package store

import (
	"context"
	"time"

	"claimsignal/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data, partitioned by source.
type BarStore interface {
	// WriteBars persists a batch of bars under the given source.
	WriteBars(ctx context.Context, source string, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and source within [start, end].
	ReadBars(ctx context.Context, symbol string, source string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols cached for the given source.
	ListSymbols(ctx context.Context, source string) ([]string, error)

	// ReadCoverage returns the window last fetched in full for symbol from
	// source. ok is false when nothing has been recorded.
	ReadCoverage(ctx context.Context, symbol string, source string) (cov Coverage, ok bool, err error)

	// WriteCoverage records the window fetched in full for cov.Symbol.
	WriteCoverage(ctx context.Context, cov Coverage) error
}

// Coverage is the date window over which a source was queried in full for
// one symbol. Bars may start later than Start when the instrument listed
// after it; the window still counts as covered.
type Coverage struct {
	Symbol string    `yaml:"symbol"`
	Source string    `yaml:"source"`
	Start  time.Time `yaml:"start"`
	End    time.Time `yaml:"end"`
}

// Covers reports whether [start, end] lies inside the recorded window.
func (c Coverage) Covers(start, end time.Time) bool {
	return !c.Start.After(start) && !c.End.Before(end)
}

// Extend returns the union of c and [start, end] when the two windows
// overlap or touch, and [start, end] alone otherwise.
func (c Coverage) Extend(start, end time.Time) Coverage {
	out := c
	day := 24 * time.Hour
	if c.Start.IsZero() || start.After(c.End.Add(day)) || end.Before(c.Start.Add(-day)) {
		out.Start, out.End = start, end
		return out
	}
	if start.Before(out.Start) {
		out.Start = start
	}
	if end.After(out.End) {
		out.End = end
	}
	return out
}

// RunStore persists and retrieves the outcome of backtest runs.
type RunStore interface {
	// SaveRun inserts a run with its results and skips and returns its ID.
	SaveRun(ctx context.Context, run *RunRecord) (int64, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// RunRecord is one invocation of the batch backtest.
type RunRecord struct {
	ID            int64
	StartedAt     time.Time
	Provider      string
	SeriesID      string
	Benchmark     string
	BenchmarkCAGR float64
	Results       []ResultRecord
	Skips         []SkipRecord
}

// ResultRecord holds the summary metrics of one evaluated instrument.
type ResultRecord struct {
	Symbol      string
	Weeks       int
	CAGR        float64
	Sharpe      float64
	Alpha       float64
	BuyHoldCAGR float64
	MaxDrawdown float64
}

// SkipRecord is an instrument that produced no result, and why.
type SkipRecord struct {
	Symbol string
	Kind   string
	Reason string
}
