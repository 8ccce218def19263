// Package yahoo fetches daily adjusted bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"claimsignal/internal/domain"
	"claimsignal/internal/gather"
	"claimsignal/internal/util"
)

// Compile-time interface check.
var _ gather.PriceSource = (*Client)(nil)

const (
	providerName = "yahoo"
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// chartResponse is the payload of /v8/finance/chart/{symbol}. Yahoo emits
// null for days without a print, hence the pointer slices.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// Client is a PriceSource backed by the Yahoo chart endpoint. Bar.Close
// carries the split and dividend adjusted close.
type Client struct {
	baseURL   string
	http      HTTPClient
	limiter   *util.RateLimiter
	log       *slog.Logger
	attempts  int
	baseDelay time.Duration
}

// New creates a Yahoo client. baseURL is typically
// https://query1.finance.yahoo.com. A nil hc uses a 30s-timeout client.
func New(baseURL string, hc HTTPClient, rateLimitPerMin int) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      hc,
		limiter:   util.NewRateLimiter(rateLimitPerMin),
		log:       slog.Default().With("component", "yahoo"),
		attempts:  3,
		baseDelay: time.Second,
	}
}

// Name returns "yahoo".
func (c *Client) Name() string { return providerName }

// FetchBars returns daily bars for symbol within [start, end]. An unknown
// symbol yields no bars and no error.
func (c *Client) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	err := util.Retry(ctx, c.attempts, c.baseDelay, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		bars, err = c.fetch(ctx, symbol, start, end)
		return err
	})
	if err != nil {
		return nil, gather.AsProviderError(providerName, symbol, err)
	}
	c.log.Debug("fetched bars", "symbol", symbol, "bars", len(bars))
	return bars, nil
}

func (c *Client) fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("period1", fmt.Sprint(start.Unix()))
	// period2 is exclusive.
	q.Set("period2", fmt.Sprint(end.AddDate(0, 0, 1).Unix()))
	q.Set("interval", "1d")
	q.Set("events", "history")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, util.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, util.Permanent(err)
		}
		return nil, fmt.Errorf("failed to call Yahoo API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("Yahoo API returned status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, util.Permanent(err)
		}
		return nil, err
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("failed to decode Yahoo JSON: %w", err)
	}
	if e := chart.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, nil
		}
		return nil, util.Permanent(fmt.Errorf("Yahoo API error: %s: %s", e.Code, e.Description))
	}
	if len(chart.Chart.Result) == 0 {
		return nil, nil
	}
	return toBars(symbol, chart.Chart.Result[0], start, end), nil
}

// toBars converts the columnar chart payload into bars, skipping rows whose
// adjusted close is null or non-positive.
func toBars(symbol string, res chartResult, start, end time.Time) []domain.Bar {
	if len(res.Indicators.Quote) == 0 {
		return nil
	}
	quote := res.Indicators.Quote[0]
	var adj []*float64
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}

	loc := time.UTC
	if tz := res.Meta.ExchangeTimezoneName; tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	bars := make([]domain.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		closePx := at(adj, i)
		if closePx == nil {
			closePx = at(quote.Close, i)
		}
		if closePx == nil || *closePx <= 0 {
			continue
		}
		day := util.TradingDate(time.Unix(ts, 0), loc)
		if day.Before(start) || day.After(end) {
			continue
		}
		b := domain.Bar{
			Symbol:    symbol,
			Timestamp: day,
			Open:      deref(at(quote.Open, i)),
			High:      deref(at(quote.High, i)),
			Low:       deref(at(quote.Low, i)),
			Close:     *closePx,
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			b.Volume = *quote.Volume[i]
		}
		bars = append(bars, b)
	}
	return bars
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
