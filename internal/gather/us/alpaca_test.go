package us

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"claimsignal/internal/gather"
)

type fakeBarsClient struct {
	bars []marketdata.Bar
	err  error
	req  marketdata.GetBarsRequest
}

func (f *fakeBarsClient) GetBars(_ string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.req = req
	return f.bars, f.err
}

func TestAlpacaPriceSourceName(t *testing.T) {
	src := NewAlpacaPriceSource("key", "secret", "https://data.alpaca.markets", "iex", 0)
	if got := src.Name(); got != "alpaca" {
		t.Errorf("Name() = %q, want %q", got, "alpaca")
	}
}

func TestAlpacaFetchBars(t *testing.T) {
	fake := &fakeBarsClient{bars: []marketdata.Bar{
		// Daily bars are stamped at midnight ET.
		{Timestamp: time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC), Open: 37.6, High: 38, Low: 37.5, Close: 37.9, Volume: 41000000, TradeCount: 150000, VWAP: 37.8},
		{Timestamp: time.Date(2024, 1, 3, 5, 0, 0, 0, time.UTC), Open: 37.9, High: 38.1, Low: 37.4, Close: 37.5, Volume: 38000000},
	}}
	src := newAlpacaPriceSource(fake, "sip", 0)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	bars, err := src.FetchBars(context.Background(), "xlf", start, end)
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("FetchBars returned %d bars, want 2", len(bars))
	}
	if bars[0].Symbol != "XLF" {
		t.Errorf("Symbol = %q, want XLF", bars[0].Symbol)
	}
	if want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC); !bars[0].Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", bars[0].Timestamp, want)
	}
	if bars[0].Volume != 41000000 || bars[0].TradeCount != 150000 {
		t.Errorf("Volume/TradeCount = %d/%d", bars[0].Volume, bars[0].TradeCount)
	}

	if fake.req.Adjustment != marketdata.All {
		t.Errorf("Adjustment = %v, want all", fake.req.Adjustment)
	}
	if fake.req.Feed != "sip" {
		t.Errorf("Feed = %v, want sip", fake.req.Feed)
	}
	if !fake.req.End.Equal(end.AddDate(0, 0, 1)) {
		t.Errorf("End = %v, want %v", fake.req.End, end.AddDate(0, 0, 1))
	}
}

func TestAlpacaFetchBarsError(t *testing.T) {
	src := newAlpacaPriceSource(&fakeBarsClient{err: errors.New("forbidden")}, "iex", 0)

	_, err := src.FetchBars(context.Background(), "TSLA", time.Now().AddDate(-1, 0, 0), time.Now())
	var pe *gather.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *gather.ProviderError", err)
	}
	if pe.Provider != "alpaca" || pe.Symbol != "TSLA" {
		t.Errorf("ProviderError = %+v", pe)
	}
}
