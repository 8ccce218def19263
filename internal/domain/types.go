// Package domain defines the value types shared across claimsignal: dated
// observations, daily price bars, and the jobless-claims signal.
package domain

import (
	"math"
	"time"
)

// ---------------------------------------------------------------------------
// Observations
// ---------------------------------------------------------------------------

// Point is a single dated value. Dates are civil dates at UTC midnight.
type Point struct {
	Date  time.Time
	Value float64
}

// Valid reports whether the point carries a finite value.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0)
}

// Bar is a daily OHLCV bar as returned by a price provider. Close is the
// split- and dividend-adjusted close when the provider supports it.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// ClosePoints projects bars onto their closing prices.
func ClosePoints(bars []Bar) []Point {
	out := make([]Point, 0, len(bars))
	for _, b := range bars {
		out = append(out, Point{Date: b.Timestamp, Value: b.Close})
	}
	return out
}

// ---------------------------------------------------------------------------
// Signal
// ---------------------------------------------------------------------------

// SignalState is the directional state derived from claims momentum.
type SignalState int8

const (
	// SignalUndefined is only valid as a leading prefix, before the first
	// threshold crossing.
	SignalUndefined SignalState = iota
	SignalFlat
	SignalLong
)

// String returns the lowercase state name.
func (s SignalState) String() string {
	switch s {
	case SignalFlat:
		return "flat"
	case SignalLong:
		return "long"
	default:
		return "undefined"
	}
}

// Defined reports whether the state is Flat or Long.
func (s SignalState) Defined() bool {
	return s == SignalFlat || s == SignalLong
}

// Exposure is the fraction of the instrument held while in this state.
func (s SignalState) Exposure() float64 {
	if s == SignalLong {
		return 1
	}
	return 0
}

// SignalPoint is one week of the signal series, carrying the claims level
// and its week-over-week change alongside the resulting state.
type SignalPoint struct {
	Date      time.Time
	Claims    float64
	ChangePct float64 // week-over-week change in percent; meaningful only if HasChange
	HasChange bool
	State     SignalState
}
