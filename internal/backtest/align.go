package backtest

import (
	"fmt"

	"claimsignal/internal/domain"
	"claimsignal/internal/util"
)

// Align resamples raw daily prices to the weekly anchor and inner-joins them
// with the signal series. Signal points without a defined state or claims
// change, and weeks without a positive price, are dropped.
//
// The signal series must already be on the weekly anchor (as produced by
// signal.Generator over util.ResampleFill output).
func Align(symbol string, prices []domain.Point, signals []domain.SignalPoint) (Frame, error) {
	weekly := util.ResampleLast(prices)
	if len(weekly) == 0 {
		return Frame{}, fmt.Errorf("%s: %w: no valid price data", symbol, ErrDataUnavailable)
	}

	byWeek := make(map[int64]float64, len(weekly))
	for _, p := range weekly {
		byWeek[p.Date.Unix()] = p.Value
	}

	rows := make([]Row, 0, len(signals))
	for _, s := range signals {
		if !s.State.Defined() || !s.HasChange {
			continue
		}
		price, ok := byWeek[s.Date.Unix()]
		if !ok || price <= 0 {
			continue
		}
		rows = append(rows, Row{
			Date:      s.Date,
			Price:     price,
			Claims:    s.Claims,
			ChangePct: s.ChangePct,
			Signal:    s.State,
		})
	}

	if len(rows) == 0 {
		return Frame{}, fmt.Errorf("%s: %w: %d price weeks, none overlap the signal window",
			symbol, ErrDataUnavailable, len(weekly))
	}
	return Frame{Symbol: symbol, Rows: rows}, nil
}
