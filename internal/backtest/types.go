// Package backtest aligns instrument prices with the claims signal, replays
// the signal against weekly returns, and computes CAGR, Sharpe and Alpha
// against a buy-and-hold benchmark.
//
// Everything in this package is pure: inputs are never mutated and every
// result is a fresh value owned by the caller.
package backtest

import (
	"time"

	"claimsignal/internal/domain"
)

// Row is one week of an aligned frame. Every field is populated.
type Row struct {
	Date      time.Time
	Price     float64
	Claims    float64
	ChangePct float64
	Signal    domain.SignalState
}

// Frame is the inner join of an instrument's weekly prices with the defined
// part of the signal series, in ascending date order.
type Frame struct {
	Symbol string
	Rows   []Row
}

// Len returns the number of aligned weeks.
func (f Frame) Len() int { return len(f.Rows) }

// Result holds the outcome of backtesting one instrument.
//
// Returns and StrategyReturns start at the second row of the frame (the
// first row has no prior price). The cumulative series cover every row and
// start at exactly 1.
type Result struct {
	Symbol string
	Frame  Frame

	Returns            []domain.Point
	StrategyReturns    []domain.Point
	CumulativePrice    []domain.Point
	CumulativeStrategy []domain.Point

	CAGR   float64
	Sharpe float64
	Alpha  float64

	BuyHoldCAGR float64 // instrument's own buy-and-hold CAGR over the frame
	MaxDrawdown float64 // of the cumulative strategy series, as a positive fraction
}

// Weeks returns the number of aligned weeks behind the result.
func (r *Result) Weeks() int { return r.Frame.Len() }

// BenchmarkResult is the buy-and-hold performance of the reference asset.
type BenchmarkResult struct {
	Symbol     string
	Returns    []domain.Point
	Cumulative []domain.Point
	CAGR       float64
}

// Weeks returns the number of weekly periods in the benchmark series.
func (b *BenchmarkResult) Weeks() int { return len(b.Cumulative) }
