package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"optionlab/internal/engine"
	"optionlab/internal/metrics"
	"optionlab/types"
)

func sweepCmd(flags *rootFlags) *cobra.Command {
	var (
		synthetic   bool
		targets     string
		stops       string
		workers     int
		metricsPath string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Backtest a grid of target profit and stop loss percentages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			base, err := cfg.BacktestConfig()
			if err != nil {
				return err
			}
			targetGrid, err := parseGrid(targets)
			if err != nil {
				return fmt.Errorf("targets: %w", err)
			}
			stopGrid, err := parseGrid(stops)
			if err != nil {
				return fmt.Errorf("stops: %w", err)
			}
			cfgs := expandGrid(base, targetGrid, stopGrid)

			ctx := cmd.Context()
			data, store, closeData, err := dataSources(ctx, cfg, base, synthetic)
			if err != nil {
				return err
			}
			defer closeData()

			reg := metrics.NewRegistry()
			results, err := engine.NewEngine(data, store, engine.WithObserver(reg)).Sweep(ctx, cfgs, workers)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TARGET%\tSTOP%\tSTATUS\tTRADES\tWIN%\tRETURN%\tMAXDD%\tSHARPE")
			for i, r := range results {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					cfgs[i].Exit.TargetProfitPct, cfgs[i].Exit.StopLossPct, r.Status, r.TotalTrades,
					r.WinRate.Mul(decimal.NewFromInt(100)).StringFixed(1), r.ReturnPct.StringFixed(2),
					r.MaxDrawdownPercent.StringFixed(2), r.SharpeRatio.StringFixed(2))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if metricsPath != "" {
				return reg.WriteTextfile(metricsPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&synthetic, "synthetic", false, "use generated market data even when a database is configured")
	cmd.Flags().StringVar(&targets, "targets", "25,50,75", "comma-separated target profit percentages, 0 disables")
	cmd.Flags().StringVar(&stops, "stops", "100,200", "comma-separated stop loss percentages, 0 disables")
	cmd.Flags().IntVar(&workers, "workers", 4, "backtests run concurrently")
	cmd.Flags().StringVar(&metricsPath, "metrics-file", "", "write Prometheus metrics in text format to this file")
	return cmd
}

func parseGrid(s string) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := decimal.NewFromString(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty grid")
	}
	return out, nil
}

// expandGrid returns one config per target and stop pair, targets varying
// slowest.
func expandGrid(base types.BacktestConfig, targets, stops []decimal.Decimal) []types.BacktestConfig {
	cfgs := make([]types.BacktestConfig, 0, len(targets)*len(stops))
	for _, target := range targets {
		for _, stop := range stops {
			cfg := base
			cfg.Exit.TargetProfitPct = target
			cfg.Exit.StopLossPct = stop
			cfgs = append(cfgs, cfg)
		}
	}
	return cfgs
}
