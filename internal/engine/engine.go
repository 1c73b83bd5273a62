package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"optionlab/types"
)

// Engine runs backtests against a market data source and records each run
// in a ResultStore.
type Engine struct {
	data     MarketDataSource
	store    ResultStore
	observer Observer
	runOpts  []RunOption
	now      func() time.Time
	newID    func() string
}

type EngineOption func(*Engine)

func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithRunOptions applies opts to every run started by the engine.
func WithRunOptions(opts ...RunOption) EngineOption {
	return func(e *Engine) {
		e.runOpts = append(e.runOpts, opts...)
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(data MarketDataSource, store ResultStore, opts ...EngineOption) *Engine {
	if store == nil {
		store = NopStore{}
	}
	e := &Engine{
		data:     data,
		store:    store,
		observer: nopObserver{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run validates cfg, persists it as pending, simulates it and persists the
// terminal result. A failed simulation is returned as a result, not an error.
func (e *Engine) Run(ctx context.Context, cfg types.BacktestConfig) (*types.BacktestResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	id := e.newID()
	logger := zerolog.Ctx(ctx).With().Str("backtest_id", id).Str("symbol", cfg.Symbol).Logger()
	ctx = logger.WithContext(ctx)

	if err := e.store.SaveConfig(ctx, id, cfg); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}
	if err := e.store.UpdateStatus(ctx, id, types.StatusRunning, ""); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	logger.Info().Time("start", cfg.StartDate).Time("end", cfg.EndDate).Msg("backtest started")
	started := e.now()
	result, err := RunBacktest(ctx, cfg, e.data, e.runOpts...)
	if err != nil {
		return nil, err
	}
	result.ID = id
	result.StartedAt = started
	result.CompletedAt = e.now()

	// The terminal state is persisted even when ctx was cancelled.
	if err := e.store.SaveResult(context.WithoutCancel(ctx), result); err != nil {
		return result, fmt.Errorf("save result: %w", err)
	}
	e.observer.ObserveRun(result, result.CompletedAt.Sub(started))
	return result, nil
}

// Sweep runs independent configs with at most workers in flight. Results are
// returned in input order.
func (e *Engine) Sweep(ctx context.Context, cfgs []types.BacktestConfig, workers int) ([]*types.BacktestResult, error) {
	for i, cfg := range cfgs {
		if err := ValidateConfig(cfg); err != nil {
			return nil, fmt.Errorf("config %d: %w", i, err)
		}
	}

	results := make([]*types.BacktestResult, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, cfg := range cfgs {
		g.Go(func() error {
			res, err := e.Run(gctx, cfg)
			if err != nil {
				return fmt.Errorf("config %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
