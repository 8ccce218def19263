// Package gather defines the retrieval side of claimsignal: sources for the
// weekly claims series and for daily instrument prices, plus decorators that
// add circuit breaking and on-disk caching to any price source.
package gather

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"claimsignal/internal/domain"
)

// PriceSource retrieves daily bars for one instrument. An empty result with
// a nil error means the provider has no data for the window.
type PriceSource interface {
	// Name returns the provider identifier (e.g. "alpaca", "yahoo").
	Name() string
	// FetchBars returns daily bars for symbol within [start, end], ascending.
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// ClaimsSource retrieves a macro time series such as initial jobless claims.
type ClaimsSource interface {
	// FetchSeries returns the raw observations of seriesID, ascending.
	FetchSeries(ctx context.Context, seriesID string) ([]domain.Point, error)
}

// ProviderError reports that an upstream data provider failed for a symbol:
// network errors, rate limiting, unknown tickers, or an open circuit.
type ProviderError struct {
	Provider string
	Symbol   string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: fetching %s: %v", e.Provider, e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AsProviderError wraps err in a ProviderError unless it already is one.
func AsProviderError(provider, symbol string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Symbol: symbol, Err: err}
}

// symbolPattern matches exchange ticker symbols: uppercase letters, digits,
// dots (BRK.A) and hyphens (BF-B), at most 10 characters.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// ValidateSymbol rejects symbols that are not plausible tickers. Symbols end
// up in URLs and cache paths, so this runs before any fetch.
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol %q", symbol)
	}
	return nil
}
