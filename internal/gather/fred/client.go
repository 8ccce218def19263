// Package fred fetches economic time series from the Federal Reserve Bank of
// St. Louis. With an API key it uses the JSON observations endpoint;
// without one it falls back to the public fredgraph CSV download.
package fred

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"claimsignal/internal/domain"
	"claimsignal/internal/gather"
	"claimsignal/internal/util"
)

// Compile-time interface check.
var _ gather.ClaimsSource = (*Client)(nil)

const (
	providerName = "fred"
	dateLayout   = "2006-01-02"
	// missingValue marks an observation FRED has no value for.
	missingValue = "."
)

// Config holds the FRED endpoints and credentials.
type Config struct {
	APIKey          string
	BaseURL         string // e.g. https://api.stlouisfed.org/fred
	GraphURL        string // e.g. https://fred.stlouisfed.org/graph/fredgraph.csv
	RateLimitPerMin int
}

// Client retrieves FRED series observations.
type Client struct {
	cfg       Config
	http      *http.Client
	limiter   *util.RateLimiter
	log       *slog.Logger
	attempts  int
	baseDelay time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets the attempt count and initial backoff.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.baseDelay = baseDelay
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a FRED client.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   util.NewRateLimiter(cfg.RateLimitPerMin),
		log:       slog.Default().With("component", "fred"),
		attempts:  3,
		baseDelay: time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// observationsResponse is the JSON payload of /series/observations.
type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// FetchSeries returns every observation of seriesID in ascending date order.
// Missing observations are dropped. Failures are returned as
// *gather.ProviderError.
func (c *Client) FetchSeries(ctx context.Context, seriesID string) ([]domain.Point, error) {
	var points []domain.Point
	err := util.Retry(ctx, c.attempts, c.baseDelay, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		if c.cfg.APIKey != "" {
			points, err = c.fetchJSON(ctx, seriesID)
		} else {
			points, err = c.fetchCSV(ctx, seriesID)
		}
		if err != nil {
			c.log.Debug("fetch attempt failed", "series", seriesID, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, gather.AsProviderError(providerName, seriesID, err)
	}
	c.log.Info("fetched series", "series", seriesID, "observations", len(points))
	return points, nil
}

func (c *Client) fetchJSON(ctx context.Context, seriesID string) ([]domain.Point, error) {
	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", c.cfg.APIKey)
	q.Set("file_type", "json")
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/series/observations?" + q.Encode()

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp observationsResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding observations: %w", err)
	}

	points := make([]domain.Point, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		p, ok, err := parseObservation(o.Date, o.Value)
		if err != nil {
			return nil, util.Permanent(err)
		}
		if ok {
			points = append(points, p)
		}
	}
	return points, nil
}

func (c *Client) fetchCSV(ctx context.Context, seriesID string) ([]domain.Point, error) {
	u := c.cfg.GraphURL + "?" + url.Values{"id": {seriesID}}.Encode()

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	r := csv.NewReader(body)
	r.FieldsPerRecord = 2
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// First row is the header (observation_date,<SERIES>).
	points := make([]domain.Point, 0, len(records)-1)
	for _, rec := range records[1:] {
		p, ok, err := parseObservation(rec[0], rec[1])
		if err != nil {
			return nil, util.Permanent(err)
		}
		if ok {
			points = append(points, p)
		}
	}
	return points, nil
}

// get issues a GET and returns the body of a 200 response. Client errors
// other than 429 are permanent.
func (c *Client) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, util.Permanent(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, util.Permanent(err)
		}
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()
	err = fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return nil, util.Permanent(err)
	}
	return nil, err
}

// parseObservation converts one date/value pair. ok is false for missing
// values.
func parseObservation(date, value string) (p domain.Point, ok bool, err error) {
	value = strings.TrimSpace(value)
	if value == "" || value == missingValue {
		return p, false, nil
	}
	d, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return p, false, fmt.Errorf("observation date %q: %w", date, err)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return p, false, fmt.Errorf("observation value %q on %s: %w", value, date, err)
	}
	return domain.Point{Date: d, Value: v}, true, nil
}
