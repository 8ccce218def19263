// Package us provides the Alpaca market-data price source for US equities
// and ETFs.
package us

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"claimsignal/internal/domain"
	"claimsignal/internal/gather"
	"claimsignal/internal/util"
)

// Compile-time interface check.
var _ gather.PriceSource = (*AlpacaPriceSource)(nil)

// barsClient is the subset of *marketdata.Client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaPriceSource fetches split and dividend adjusted daily bars from the
// Alpaca market-data API.
type AlpacaPriceSource struct {
	client  barsClient
	feed    string
	limiter *util.RateLimiter
	et      *time.Location
	log     *slog.Logger
}

// NewAlpacaPriceSource creates a price source configured with the given
// Alpaca credentials. feed is "iex" or "sip".
func NewAlpacaPriceSource(apiKey, apiSecret, dataURL, feed string, rateLimitPerMin int) *AlpacaPriceSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return newAlpacaPriceSource(marketdata.NewClient(opts), feed, rateLimitPerMin)
}

func newAlpacaPriceSource(c barsClient, feed string, rateLimitPerMin int) *AlpacaPriceSource {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		et = time.UTC
	}
	return &AlpacaPriceSource{
		client:  c,
		feed:    feed,
		limiter: util.NewRateLimiter(rateLimitPerMin),
		et:      et,
		log:     slog.Default().With("component", "alpaca"),
	}
}

// Name returns "alpaca".
func (a *AlpacaPriceSource) Name() string { return "alpaca" }

// FetchBars fetches daily bars for symbol within [start, end]. Bar
// timestamps are normalized to the ET trading date at UTC midnight.
func (a *AlpacaPriceSource) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	alpacaBars, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		// End is exclusive at the API.
		End:  end.AddDate(0, 0, 1),
		Feed: marketdata.Feed(a.feed),
	})
	if err != nil {
		return nil, gather.AsProviderError(a.Name(), symbol, fmt.Errorf("GetBars: %w", err))
	}

	bars := make([]domain.Bar, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		day := util.TradingDate(ab.Timestamp, a.et)
		if day.Before(start) || day.After(end) {
			continue
		}
		bars = append(bars, domain.Bar{
			Symbol:     strings.ToUpper(symbol),
			Timestamp:  day,
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	a.log.Debug("fetched bars", "symbol", symbol, "bars", len(bars))
	return bars, nil
}
