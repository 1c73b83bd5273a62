package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"optionlab/internal/config"
	"optionlab/internal/engine"
	"optionlab/internal/marketdata"
	"optionlab/internal/repository"
	"optionlab/types"
)

type rootFlags struct {
	configPath string
	logLevel   string
	jsonLogs   bool
}

func Execute(ctx context.Context) error {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "backtester",
		Short:         "Options strategy analytics and backtesting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.logLevel == "" {
				return nil
			}
			level, err := zerolog.ParseLevel(flags.logLevel)
			if err != nil {
				return fmt.Errorf("log level %q: %w", flags.logLevel, err)
			}
			setupLogger(cmd, level, flags.jsonLogs)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "optionlab.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level, overrides the config file")
	root.PersistentFlags().BoolVar(&flags.jsonLogs, "json-logs", false, "log JSON instead of console output")

	root.AddCommand(
		runCmd(flags),
		sweepCmd(flags),
		payoffCmd(),
		classifyCmd(),
		greeksCmd(),
		migrateCmd(flags),
	)
	return root.ExecuteContext(ctx)
}

// setupLogger replaces the global logger and attaches it to the command
// context so the engine picks it up through zerolog.Ctx.
func setupLogger(cmd *cobra.Command, level zerolog.Level, json bool) {
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if json {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	logger = logger.Level(level)
	log.Logger = logger
	cmd.SetContext(logger.WithContext(cmd.Context()))
}

// loadConfig reads the config file and applies its log settings unless the
// level was given on the command line.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel == "" {
		setupLogger(cmd, cfg.LogLevel(), cfg.Log.JSON || flags.jsonLogs)
	}
	return cfg, nil
}

// dataSources picks the synthetic generator or Postgres. The returned close
// func is never nil.
func dataSources(ctx context.Context, cfg *config.Config, bt types.BacktestConfig, synthetic bool) (engine.MarketDataSource, engine.ResultStore, func(), error) {
	if synthetic || cfg.Database.URL == "" {
		syn, err := cfg.SyntheticConfig(bt.Symbol, bt.StartDate, bt.RiskFreeRate)
		if err != nil {
			return nil, nil, nil, err
		}
		src, err := marketdata.NewSynthetic(syn)
		if err != nil {
			return nil, nil, nil, err
		}
		zerolog.Ctx(ctx).Info().Int64("seed", syn.Seed).Msg("using synthetic market data")
		return src, engine.NopStore{}, func() {}, nil
	}

	db, err := repository.NewDatabase(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return db, db, db.Close, nil
}
