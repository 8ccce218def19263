package report

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"claimsignal/internal/batch"
	"claimsignal/internal/domain"
)

// Series names in the cumulative CSV.
const (
	SeriesBenchmark = "benchmark"
	SeriesStrategy  = "strategy"
	SeriesBuyHold   = "buy_hold"
)

// WriteCSVFile writes the cumulative series of rep to path, creating parent
// directories as needed.
func WriteCSVFile(path string, rep *batch.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, rep); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes the benchmark cumulative series and, for every evaluated
// instrument, its cumulative strategy and buy-and-hold series in long form:
// date,symbol,series,value.
func WriteCSV(w io.Writer, rep *batch.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "symbol", "series", "value"}); err != nil {
		return err
	}

	write := func(symbol, series string, points []domain.Point) error {
		for _, p := range points {
			rec := []string{p.Date.Format(dateLayout), symbol, series, formatF(p.Value)}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(rep.Benchmark.Symbol, SeriesBenchmark, rep.Benchmark.Cumulative); err != nil {
		return err
	}
	for _, sym := range rep.Order {
		r := rep.Results[sym]
		if err := write(sym, SeriesStrategy, r.CumulativeStrategy); err != nil {
			return err
		}
		if err := write(sym, SeriesBuyHold, r.CumulativePrice); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
