package util

import (
	"sort"
	"time"

	"claimsignal/internal/domain"
)

// WeekAnchorDay closes every weekly bin. A bin covers (previous anchor,
// anchor], so Saturday observations roll into the following Friday.
const WeekAnchorDay = time.Friday

// PeriodsPerYear is the annualization base for weekly series.
const PeriodsPerYear = 52

// WeekAnchor returns the anchor date, at UTC midnight, of the week that
// contains the civil date of t.
func WeekAnchor(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	shift := (int(WeekAnchorDay) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, shift)
}

// TradingDate returns the civil date of t in loc as UTC midnight. Providers
// stamp daily bars at various instants (midnight ET, the open, ...), so
// every bar is normalized through here before resampling.
func TradingDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ResampleLast bins points into anchor weeks and keeps the last valid value
// of each bin. Weeks without a valid value are omitted.
func ResampleLast(points []domain.Point) []domain.Point {
	sorted := make([]domain.Point, 0, len(points))
	for _, p := range points {
		if p.Valid() {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var out []domain.Point
	for _, p := range sorted {
		anchor := WeekAnchor(p.Date)
		if n := len(out); n > 0 && out[n-1].Date.Equal(anchor) {
			out[n-1].Value = p.Value
			continue
		}
		out = append(out, domain.Point{Date: anchor, Value: p.Value})
	}
	return out
}

// ResampleFill is ResampleLast with every anchor between the first and last
// bin present; empty weeks carry the previous week's value.
func ResampleFill(points []domain.Point) []domain.Point {
	binned := ResampleLast(points)
	if len(binned) == 0 {
		return nil
	}

	first, last := binned[0].Date, binned[len(binned)-1].Date
	out := make([]domain.Point, 0, int(last.Sub(first).Hours()/(24*7))+1)
	i := 0
	value := binned[0].Value
	for d := first; !d.After(last); d = d.AddDate(0, 0, 7) {
		if i < len(binned) && binned[i].Date.Equal(d) {
			value = binned[i].Value
			i++
		}
		out = append(out, domain.Point{Date: d, Value: value})
	}
	return out
}
