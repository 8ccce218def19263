package backtest

import (
	"math"
	"time"

	"claimsignal/internal/domain"
	"claimsignal/internal/util"
)

// CAGR annualizes a cumulative growth factor observed over the given number
// of weekly periods.
func CAGR(final float64, periods int) float64 {
	if periods <= 0 || final <= 0 {
		return 0
	}
	return math.Pow(final, float64(util.PeriodsPerYear)/float64(periods)) - 1
}

// Sharpe returns the annualized Sharpe ratio of weekly returns with a zero
// risk-free rate, using the sample standard deviation. Degenerate inputs
// (fewer than two returns, or zero dispersion) yield 0.
func Sharpe(returns []float64) float64 {
	n := len(returns)
	if n < 2 || constant(returns) {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(n)

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(n-1))
	if sd == 0 || math.IsNaN(sd) || math.IsInf(sd, 0) {
		return 0
	}
	return mean / sd * math.Sqrt(util.PeriodsPerYear)
}

// MaxDrawdown returns the largest peak-to-trough decline of a cumulative
// series as a positive fraction.
func MaxDrawdown(cum []domain.Point) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, p := range cum {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			if dd := 1 - p.Value/peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// Compound returns the running product of (1 + r) over returns, seeded at 1
// on seed. The output has one more point than returns.
func Compound(seed time.Time, returns []domain.Point) []domain.Point {
	out := make([]domain.Point, 0, len(returns)+1)
	out = append(out, domain.Point{Date: seed, Value: 1})
	acc := 1.0
	for _, r := range returns {
		acc *= 1 + r.Value
		out = append(out, domain.Point{Date: r.Date, Value: acc})
	}
	return out
}

// PeriodReturns computes simple returns between consecutive points. The
// first point has no return, so the output is one shorter than the input.
func PeriodReturns(prices []domain.Point) []domain.Point {
	if len(prices) < 2 {
		return nil
	}
	out := make([]domain.Point, 0, len(prices)-1)
	for t := 1; t < len(prices); t++ {
		out = append(out, domain.Point{
			Date:  prices[t].Date,
			Value: prices[t].Value/prices[t-1].Value - 1,
		})
	}
	return out
}

func values(pts []domain.Point) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Value
	}
	return out
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}
