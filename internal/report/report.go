// Package report renders backtest runs for people: the summary table, the
// signal tail, the run history, and a CSV of the cumulative series for
// plotting elsewhere.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"claimsignal/internal/batch"
	"claimsignal/internal/domain"
	"claimsignal/internal/store"
)

const dateLayout = "2006-01-02"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// WriteSummary writes the benchmark line, one row per evaluated instrument
// in configuration order, and the skipped instruments.
func WriteSummary(w io.Writer, rep *batch.Report) error {
	b := rep.Benchmark
	if _, err := fmt.Fprintf(w, "Benchmark %s  CAGR %s  (%d weeks)\n\n",
		b.Symbol, FormatPct(b.CAGR), b.Weeks()); err != nil {
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "SYMBOL\tWEEKS\tFROM\tTO\tCAGR\tBUY&HOLD\tALPHA\tSHARPE\tMAX DD")
	for _, sym := range rep.Order {
		r := rep.Results[sym]
		rows := r.Frame.Rows
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sym,
			FormatInt(r.Weeks()),
			rows[0].Date.Format(dateLayout),
			rows[len(rows)-1].Date.Format(dateLayout),
			FormatPct(r.CAGR),
			FormatPct(r.BuyHoldCAGR),
			FormatPct(r.Alpha),
			FormatRatio(r.Sharpe),
			FormatPct(-r.MaxDrawdown),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(rep.Skips) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nSkipped %d:\n", len(rep.Skips))
	tw = newTable(w)
	for _, s := range rep.Skips {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", s.Symbol, s.Kind, s.Reason)
	}
	return tw.Flush()
}

// WriteSignals writes the last n points of the signal series (all when
// n <= 0).
func WriteSignals(w io.Writer, signals []domain.SignalPoint, n int) error {
	if n > 0 && len(signals) > n {
		signals = signals[len(signals)-n:]
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "WEEK\tCLAIMS\tCHANGE\tSIGNAL")
	for _, s := range signals {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			s.Date.Format(dateLayout),
			FormatInt(int(s.Claims)),
			FormatChange(s.ChangePct, s.HasChange),
			s.State,
		)
	}
	return tw.Flush()
}

// WriteHistory writes one block per recorded run, newest first.
func WriteHistory(w io.Writer, runs []store.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no recorded runs")
		return err
	}
	for i, run := range runs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Run %d  %s  provider=%s  series=%s  benchmark=%s %s\n",
			run.ID, run.StartedAt.Format(time.RFC3339), run.Provider, run.SeriesID,
			run.Benchmark, FormatPct(run.BenchmarkCAGR))

		tw := newTable(w)
		for _, r := range run.Results {
			fmt.Fprintf(tw, "  %s\t%s\tcagr %s\talpha %s\tsharpe %s\n",
				r.Symbol, FormatInt(r.Weeks), FormatPct(r.CAGR), FormatPct(r.Alpha), FormatRatio(r.Sharpe))
		}
		for _, s := range run.Skips {
			fmt.Fprintf(tw, "  %s\tskipped\t%s\t\t\n", s.Symbol, s.Kind)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// WriteCache lists the cached symbols of one provider and the window each
// was last fetched over. Symbols with bars but no recorded window show "-".
func WriteCache(w io.Writer, source string, entries []store.Coverage) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintf(w, "no cached bars for %s\n", source)
		return err
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "SYMBOL\tFROM\tTO\n")
	for _, c := range entries {
		from, to := "-", "-"
		if !c.Start.IsZero() {
			from, to = c.Start.Format(time.DateOnly), c.End.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Symbol, from, to)
	}
	return tw.Flush()
}
