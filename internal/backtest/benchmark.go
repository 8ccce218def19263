package backtest

import (
	"fmt"

	"claimsignal/internal/domain"
	"claimsignal/internal/util"
)

// Benchmark computes buy-and-hold performance of the reference asset from
// its raw daily prices. The CAGR uses the benchmark's own number of weekly
// periods.
func Benchmark(symbol string, prices []domain.Point) (*BenchmarkResult, error) {
	weekly := make([]domain.Point, 0, len(prices)/5+1)
	for _, p := range util.ResampleLast(prices) {
		if p.Value > 0 {
			weekly = append(weekly, p)
		}
	}
	if len(weekly) < 2 {
		return nil, fmt.Errorf("benchmark %s: %w: %d weekly prices, need at least 2",
			symbol, ErrDataUnavailable, len(weekly))
	}

	returns := PeriodReturns(weekly)
	cum := Compound(weekly[0].Date, returns)
	return &BenchmarkResult{
		Symbol:     symbol,
		Returns:    returns,
		Cumulative: cum,
		CAGR:       CAGR(cum[len(cum)-1].Value, len(cum)),
	}, nil
}
