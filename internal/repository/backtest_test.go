package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"optionlab/types"
)

type storedBacktest struct {
	symbol string
	status string
	err    string
	config []byte
	result []byte
}

type mockBacktestsRepository struct {
	mu   sync.Mutex
	rows map[string]*storedBacktest
}

func newMockBacktests() *mockBacktestsRepository {
	return &mockBacktestsRepository{rows: make(map[string]*storedBacktest)}
}

func (m *mockBacktestsRepository) InsertBacktest(_ context.Context, arg insertBacktestParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[arg.ID]; ok {
		return errors.New("duplicate key")
	}
	m.rows[arg.ID] = &storedBacktest{symbol: arg.Symbol, status: arg.Status, config: arg.Config}
	return nil
}

func (m *mockBacktestsRepository) UpdateBacktestStatus(_ context.Context, arg updateBacktestStatusParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[arg.ID]
	if !ok {
		return 0, nil
	}
	row.status = arg.Status
	row.err = arg.Message
	return 1, nil
}

func (m *mockBacktestsRepository) SaveBacktestResult(_ context.Context, arg saveBacktestResultParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[arg.ID]
	if !ok {
		row = &storedBacktest{symbol: arg.Symbol}
		m.rows[arg.ID] = row
	}
	row.status = arg.Status
	row.err = arg.Message
	row.result = arg.Result
	return nil
}

func (m *mockBacktestsRepository) GetBacktestResult(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.result == nil {
		return nil, pgx.ErrNoRows
	}
	return row.result, nil
}

func TestDatabase_BacktestLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMockBacktests()
	db := &Database{backtests: repo}

	cfg := types.BacktestConfig{
		Symbol:         "SPY",
		StartDate:      startTime,
		EndDate:        endTime,
		InitialCapital: decimal.NewFromInt(10000),
		Legs:           []types.LegTemplate{{Kind: types.KindPut, Action: types.ActionSell, Quantity: 1}},
	}
	if err := db.SaveConfig(ctx, "run-1", cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}
	if got := repo.rows["run-1"].status; got != string(types.StatusPending) {
		t.Errorf("SaveConfig() status = %v, want pending", got)
	}
	var saved types.BacktestConfig
	if err := json.Unmarshal(repo.rows["run-1"].config, &saved); err != nil {
		t.Fatalf("stored config is not json: %v", err)
	}
	if saved.Symbol != "SPY" || !saved.InitialCapital.Equal(cfg.InitialCapital) {
		t.Errorf("stored config = %+v", saved)
	}

	if err := db.UpdateStatus(ctx, "run-1", types.StatusRunning, ""); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if got := repo.rows["run-1"].status; got != string(types.StatusRunning) {
		t.Errorf("UpdateStatus() status = %v, want running", got)
	}

	profitFactor := decimal.RequireFromString("1.5")
	result := &types.BacktestResult{
		ID:             "run-1",
		Symbol:         "SPY",
		Status:         types.StatusCompleted,
		TotalTrades:    2,
		ProfitFactor:   &profitFactor,
		InitialCapital: decimal.NewFromInt(10000),
		FinalCapital:   decimal.RequireFromString("10125.5"),
		StartedAt:      startTime,
		CompletedAt:    startTime.Add(time.Second),
	}
	if err := db.SaveResult(ctx, result); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}

	got, err := db.GetResult(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if got.Status != types.StatusCompleted || got.TotalTrades != 2 {
		t.Errorf("GetResult() = %+v", got)
	}
	if !got.FinalCapital.Equal(result.FinalCapital) {
		t.Errorf("GetResult() final capital = %v, want %v", got.FinalCapital, result.FinalCapital)
	}
	if got.ProfitFactor == nil || !got.ProfitFactor.Equal(profitFactor) {
		t.Errorf("GetResult() profit factor = %v, want %v", got.ProfitFactor, profitFactor)
	}
}

func TestDatabase_BacktestErrors(t *testing.T) {
	ctx := context.Background()
	db := &Database{backtests: newMockBacktests()}

	if err := db.UpdateStatus(ctx, "missing", types.StatusRunning, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus() error = %v, want %v", err, ErrNotFound)
	}
	if _, err := db.GetResult(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetResult() error = %v, want %v", err, ErrNotFound)
	}

	failed := &types.BacktestResult{ID: "run-2", Symbol: "SPY", Status: types.StatusFailed, Error: "boom"}
	if err := db.SaveResult(ctx, failed); err != nil {
		t.Fatalf("SaveResult() without SaveConfig error = %v", err)
	}
	got, err := db.GetResult(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if got.Status != types.StatusFailed || got.Error != "boom" {
		t.Errorf("GetResult() = %+v", got)
	}
}
