package main

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"claimsignal/internal/batch"
	"claimsignal/internal/pipeline"
	"claimsignal/internal/report"
	"claimsignal/internal/signal"
	"claimsignal/internal/store"
)

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "claims-backtest",
		Short:         "Backtest a weekly jobless-claims momentum signal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default $CLAIMS_CONFIG or "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(newRunCmd(a), newSignalCmd(a), newHistoryCmd(a), newCacheCmd(a), newVersionCmd())
	return root
}

func newRunCmd(a *app) *cobra.Command {
	var (
		tickers   []string
		provider  string
		csvPath   string
		noHistory bool
		workers   int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch data, backtest every instrument, and print the comparison",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			defer a.close()
			cfg := a.cfg

			if len(tickers) > 0 {
				cfg.Backtest.Tickers = upper(tickers)
			}
			if provider != "" {
				cfg.Prices.Provider = strings.ToLower(provider)
			}
			if csvPath != "" {
				cfg.Report.CSVPath = csvPath
			}
			if noHistory {
				cfg.Report.History = false
			}
			if workers > 0 {
				cfg.Backtest.MaxWorkers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			pcfg, err := pipelineConfig(a)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			opts := []pipeline.Option{
				pipeline.WithLogger(a.log),
				pipeline.WithMetrics(batch.NewMetrics(reg)),
			}
			if cfg.Report.History {
				runs, err := a.runStore()
				if err != nil {
					return err
				}
				opts = append(opts, pipeline.WithRunStore(runs))
			}

			p := pipeline.New(pcfg, a.claimsSource(), a.priceSource(), opts...)
			out, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}

			if err := report.WriteSummary(cmd.OutOrStdout(), out.Report); err != nil {
				return err
			}
			if cfg.Report.CSVPath != "" {
				if err := report.WriteCSVFile(cfg.Report.CSVPath, out.Report); err != nil {
					return fmt.Errorf("writing csv: %w", err)
				}
				a.log.Info("wrote cumulative series", "path", cfg.Report.CSVPath)
			}
			if path := cfg.Metrics.TextfilePath; path != "" {
				if err := prometheus.WriteToTextfile(path, reg); err != nil {
					return fmt.Errorf("writing metrics: %w", err)
				}
			}
			if out.RunID != 0 {
				a.log.Info("recorded run", "id", out.RunID)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&tickers, "tickers", nil, "instruments to evaluate (overrides backtest.tickers)")
	f.StringVar(&provider, "provider", "", "price provider: alpaca or yahoo")
	f.StringVar(&csvPath, "csv", "", "write cumulative series to this CSV file")
	f.BoolVar(&noHistory, "no-history", false, "do not record the run in SQLite")
	f.IntVar(&workers, "workers", 0, "instruments evaluated concurrently")
	return cmd
}

func newSignalCmd(a *app) *cobra.Command {
	var tail int
	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Print the most recent weeks of the claims signal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			defer a.close()

			pcfg, err := pipelineConfig(a)
			if err != nil {
				return err
			}
			p := pipeline.New(pcfg, a.claimsSource(), nil, pipeline.WithLogger(a.log))
			_, sigs, err := p.Signals(cmd.Context())
			if err != nil {
				return err
			}
			return report.WriteSignals(cmd.OutOrStdout(), sigs, tail)
		},
	}
	cmd.Flags().IntVar(&tail, "tail", 12, "number of weeks to print (0 for all)")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			defer a.close()

			runs, err := a.runStore()
			if err != nil {
				return err
			}
			recs, err := runs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return report.WriteHistory(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to list")
	return cmd
}

func newCacheCmd(a *app) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "List cached price data and the window fetched for each symbol",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			defer a.close()

			source := a.cfg.Prices.Provider
			if provider != "" {
				source = strings.ToLower(provider)
			}
			ps := store.NewParquetStore(a.cfg.Storage.DataDir)
			symbols, err := ps.ListSymbols(cmd.Context(), source)
			if err != nil {
				return fmt.Errorf("listing cached symbols: %w", err)
			}
			entries := make([]store.Coverage, 0, len(symbols))
			for _, sym := range symbols {
				cov, ok, err := ps.ReadCoverage(cmd.Context(), sym, source)
				if err != nil {
					a.log.Warn("reading cache coverage", "symbol", sym, "error", err)
				}
				if !ok {
					cov = store.Coverage{Symbol: sym, Source: source}
				}
				entries = append(entries, cov)
			}
			return report.WriteCache(cmd.OutOrStdout(), source, entries)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "price provider whose cache to list (default prices.provider)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "claims-backtest", version)
		},
	}
}

func pipelineConfig(a *app) (pipeline.Config, error) {
	bt := a.cfg.Backtest
	start, end, err := bt.Window()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		SeriesID:   bt.SeriesID,
		Benchmark:  strings.ToUpper(bt.Benchmark),
		Symbols:    upper(bt.Tickers),
		Thresholds: signal.Thresholds{LongBelow: bt.LongBelow, FlatAbove: bt.FlatAbove},
		MaxWorkers: bt.MaxWorkers,
		Start:      start,
		End:        end,
	}, nil
}

func upper(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
