package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"optionlab/types"
)

// SaveConfig records a new run as pending.
func (db *Database) SaveConfig(ctx context.Context, id string, cfg types.BacktestConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	err = db.backtests.InsertBacktest(ctx, insertBacktestParams{
		ID:     id,
		Symbol: cfg.Symbol,
		Status: string(types.StatusPending),
		Config: raw,
	})
	if err != nil {
		return fmt.Errorf("insert backtest %s: %w", id, err)
	}
	return nil
}

func (db *Database) UpdateStatus(ctx context.Context, id string, status types.BacktestStatus, message string) error {
	n, err := db.backtests.UpdateBacktestStatus(ctx, updateBacktestStatusParams{
		ID:      id,
		Status:  string(status),
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("update backtest %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("backtest %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveResult stores the terminal result. Runs that were never saved as
// pending are inserted.
func (db *Database) SaveResult(ctx context.Context, result *types.BacktestResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	err = db.backtests.SaveBacktestResult(ctx, saveBacktestResultParams{
		ID:          result.ID,
		Symbol:      result.Symbol,
		Status:      string(result.Status),
		Message:     result.Error,
		Result:      raw,
		StartedAt:   result.StartedAt,
		CompletedAt: result.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("save backtest %s: %w", result.ID, err)
	}
	return nil
}

func (db *Database) GetResult(ctx context.Context, id string) (*types.BacktestResult, error) {
	raw, err := db.backtests.GetBacktestResult(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("backtest %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	var result types.BacktestResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode backtest %s: %w", id, err)
	}
	return &result, nil
}
