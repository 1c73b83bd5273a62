package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"optionlab/internal/engine"
	"optionlab/internal/metrics"
)

func runCmd(flags *rootFlags) *cobra.Command {
	var (
		synthetic   bool
		csvPath     string
		jsonPath    string
		metricsPath string
		progress    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the backtest described by the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			bt, err := cfg.BacktestConfig()
			if err != nil {
				return err
			}
			if err := engine.ValidateConfig(bt); err != nil {
				return err
			}

			ctx := cmd.Context()
			data, store, closeData, err := dataSources(ctx, cfg, bt, synthetic)
			if err != nil {
				return err
			}
			defer closeData()

			reg := metrics.NewRegistry()
			opts := []engine.EngineOption{engine.WithObserver(reg)}
			if progress {
				days, err := data.TradingDays(ctx, bt.Symbol, bt.StartDate, bt.EndDate)
				if err != nil {
					return fmt.Errorf("trading days: %w", err)
				}
				bar := initProgressBar(len(days))
				defer bar.Finish()
				opts = append(opts, engine.WithRunOptions(engine.WithDayHook(dayTicker(bar))))
			}

			result, err := engine.NewEngine(data, store, opts...).Run(ctx, bt)
			if err != nil {
				return err
			}
			if progress {
				fmt.Fprintln(os.Stderr)
			}

			if err := engine.WriteSummary(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if csvPath != "" {
				if err := engine.WriteTradesCSVFile(csvPath, result.Trades); err != nil {
					return err
				}
				zerolog.Ctx(ctx).Info().Str("path", csvPath).Int("trades", len(result.Trades)).Msg("trades written")
			}
			if jsonPath != "" {
				raw, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal result: %w", err)
				}
				if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
					return fmt.Errorf("write result %s: %w", jsonPath, err)
				}
			}
			if metricsPath != "" {
				if err := reg.WriteTextfile(metricsPath); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&synthetic, "synthetic", false, "use generated market data even when a database is configured")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write the trade list to this CSV file")
	cmd.Flags().StringVar(&jsonPath, "json", "", "write the full result to this JSON file")
	cmd.Flags().StringVar(&metricsPath, "metrics-file", "", "write Prometheus metrics in text format to this file")
	cmd.Flags().BoolVar(&progress, "progress", false, "show a progress bar")
	return cmd
}
