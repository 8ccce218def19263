// Package signal derives a persistent directional signal from the
// week-over-week change in initial jobless claims.
//
// Falling claims (change below LongBelow percent) switch the signal to Long,
// rising claims (change above FlatAbove percent) switch it to Flat, and
// anything inside the band holds the previous state. Weeks before the first
// threshold crossing stay Undefined.
package signal

import (
	"math"

	"claimsignal/internal/domain"
)

// Thresholds bound the dead zone of the signal, in percent. Crossings are
// strict: a change of exactly LongBelow or FlatAbove holds the prior state.
type Thresholds struct {
	LongBelow float64
	FlatAbove float64
}

// DefaultThresholds returns the ±2% band.
func DefaultThresholds() Thresholds {
	return Thresholds{LongBelow: -2, FlatAbove: 2}
}

// Generator turns a weekly claims series into a signal series.
type Generator struct {
	th Thresholds
}

// NewGenerator creates a Generator using the given thresholds.
func NewGenerator(th Thresholds) *Generator {
	return &Generator{th: th}
}

// Classify returns the raw state for a single week-over-week change, before
// any forward fill.
func (g *Generator) Classify(changePct float64) domain.SignalState {
	switch {
	case changePct < g.th.LongBelow:
		return domain.SignalLong
	case changePct > g.th.FlatAbove:
		return domain.SignalFlat
	default:
		return domain.SignalUndefined
	}
}

// Generate computes the signal for every week of claims. The output has the
// same length and dates as the input.
func (g *Generator) Generate(claims []domain.Point) []domain.SignalPoint {
	out := make([]domain.SignalPoint, len(claims))

	held := domain.SignalUndefined
	for i, c := range claims {
		p := domain.SignalPoint{Date: c.Date, Claims: c.Value}
		if i > 0 {
			p.ChangePct, p.HasChange = PctChange(claims[i-1].Value, c.Value)
		}

		raw := domain.SignalUndefined
		if p.HasChange {
			raw = g.Classify(p.ChangePct)
		}
		if raw.Defined() {
			held = raw
		}
		p.State = held
		out[i] = p
	}
	return out
}

// PctChange returns the change from prev to cur in percent. The second
// result is false when the change is undefined (zero or non-finite inputs).
func PctChange(prev, cur float64) (float64, bool) {
	if prev == 0 || math.IsNaN(prev) || math.IsNaN(cur) || math.IsInf(prev, 0) || math.IsInf(cur, 0) {
		return 0, false
	}
	return (cur/prev - 1) * 100, true
}

// FirstDefined returns the index of the first defined state, or -1.
func FirstDefined(series []domain.SignalPoint) int {
	for i, p := range series {
		if p.State.Defined() {
			return i
		}
	}
	return -1
}
