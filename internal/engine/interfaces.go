package engine

import (
	"context"
	"time"

	"optionlab/types"
)

// MarketDataSource supplies the trading calendar and one chain snapshot per
// trading day.
type MarketDataSource interface {
	TradingDays(ctx context.Context, symbol string, start, end time.Time) ([]time.Time, error)
	Snapshot(ctx context.Context, symbol string, day time.Time) (*types.ChainSnapshot, error)
}

// ResultStore persists a run through its lifecycle. SaveConfig records the
// run as pending.
type ResultStore interface {
	SaveConfig(ctx context.Context, id string, cfg types.BacktestConfig) error
	UpdateStatus(ctx context.Context, id string, status types.BacktestStatus, message string) error
	SaveResult(ctx context.Context, result *types.BacktestResult) error
}

// Observer is notified once per finished run.
type Observer interface {
	ObserveRun(result *types.BacktestResult, elapsed time.Duration)
}

type NopStore struct{}

func (NopStore) SaveConfig(context.Context, string, types.BacktestConfig) error { return nil }

func (NopStore) UpdateStatus(context.Context, string, types.BacktestStatus, string) error {
	return nil
}

func (NopStore) SaveResult(context.Context, *types.BacktestResult) error { return nil }

type nopObserver struct{}

func (nopObserver) ObserveRun(*types.BacktestResult, time.Duration) {}
