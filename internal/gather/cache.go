package gather

import (
	"context"
	"log/slog"
	"time"

	"claimsignal/internal/domain"
	"claimsignal/internal/store"
)

// Compile-time interface check.
var _ PriceSource = (*CachedSource)(nil)

// CachedSource serves bars from a BarStore when a previous upstream fetch
// covered the requested window, and otherwise fetches from upstream and
// stores the result. Bars are cached per provider because adjusted closes
// differ between providers.
type CachedSource struct {
	upstream PriceSource
	store    store.BarStore
	log      *slog.Logger

	now func() time.Time
}

// NewCachedSource creates a CachedSource in front of upstream.
func NewCachedSource(upstream PriceSource, s store.BarStore, log *slog.Logger) *CachedSource {
	if log == nil {
		log = slog.Default()
	}
	return &CachedSource{
		upstream: upstream,
		store:    s,
		log:      log.With("cache", upstream.Name()),
		now:      time.Now,
	}
}

// Name returns the upstream provider's name.
func (c *CachedSource) Name() string { return c.upstream.Name() }

// FetchBars returns cached bars when the recorded coverage for symbol spans
// [start, end].
func (c *CachedSource) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	source := c.upstream.Name()

	cov, ok, err := c.store.ReadCoverage(ctx, symbol, source)
	if err != nil {
		c.log.Warn("reading cache coverage", "symbol", symbol, "error", err)
	} else if ok && cov.Covers(start, end) {
		cached, err := c.store.ReadBars(ctx, symbol, source, start, end)
		if err == nil && len(cached) > 0 {
			c.log.Debug("cache hit", "symbol", symbol, "bars", len(cached))
			return cached, nil
		}
		if err != nil {
			c.log.Warn("reading cached bars", "symbol", symbol, "error", err)
		}
	}

	bars, err := c.upstream.FetchBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return bars, nil
	}
	if err := c.store.WriteBars(ctx, source, bars); err != nil {
		c.log.Warn("writing cached bars", "symbol", symbol, "error", err)
		return bars, nil
	}

	// Days from today on may still gain bars, so they are never recorded as
	// covered.
	fetchedEnd := end
	if last := c.lastSettledDay(); fetchedEnd.After(last) {
		fetchedEnd = last
	}
	if fetchedEnd.Before(start) {
		return bars, nil
	}
	if !ok {
		cov = store.Coverage{Symbol: symbol, Source: source}
	}
	if err := c.store.WriteCoverage(ctx, cov.Extend(start, fetchedEnd)); err != nil {
		c.log.Warn("writing cache coverage", "symbol", symbol, "error", err)
	}
	return bars, nil
}

func (c *CachedSource) lastSettledDay() time.Time {
	now := c.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}
