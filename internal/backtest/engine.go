package backtest

import (
	"fmt"

	"claimsignal/internal/domain"
)

// Run replays the frame's signal against its weekly returns.
//
// The signal is lagged one row: the state recorded on row t-1, known when
// that week closed, decides the exposure to the return realized from t-1 to
// t. Row 0 contributes no return. benchmarkCAGR is subtracted from the
// strategy CAGR to give Alpha.
func Run(frame Frame, benchmarkCAGR float64) (*Result, error) {
	n := frame.Len()
	if n < 2 {
		return nil, fmt.Errorf("%s: %w: %d aligned weeks, need at least 2",
			frame.Symbol, ErrDataUnavailable, n)
	}

	rows := make([]Row, n)
	copy(rows, frame.Rows)

	prices := make([]domain.Point, n)
	for i, r := range rows {
		prices[i] = domain.Point{Date: r.Date, Value: r.Price}
	}
	returns := PeriodReturns(prices)

	strategy := make([]domain.Point, len(returns))
	for i, r := range returns {
		// returns[i] is realized on rows[i+1]; the exposure comes from rows[i].
		strategy[i] = domain.Point{Date: r.Date, Value: rows[i].Signal.Exposure() * r.Value}
	}

	cumPrice := Compound(rows[0].Date, returns)
	cumStrategy := Compound(rows[0].Date, strategy)

	cagr := CAGR(cumStrategy[n-1].Value, n)
	return &Result{
		Symbol:             frame.Symbol,
		Frame:              Frame{Symbol: frame.Symbol, Rows: rows},
		Returns:            returns,
		StrategyReturns:    strategy,
		CumulativePrice:    cumPrice,
		CumulativeStrategy: cumStrategy,
		CAGR:               cagr,
		Sharpe:             Sharpe(values(strategy)),
		Alpha:              cagr - benchmarkCAGR,
		BuyHoldCAGR:        CAGR(cumPrice[n-1].Value, n),
		MaxDrawdown:        MaxDrawdown(cumStrategy),
	}, nil
}
