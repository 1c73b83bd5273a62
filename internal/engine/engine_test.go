package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"optionlab/internal/marketdata"
	"optionlab/types"
)

type statusUpdate struct {
	id     string
	status types.BacktestStatus
}

type mockStore struct {
	mu       sync.Mutex
	configs  map[string]types.BacktestConfig
	statuses []statusUpdate
	results  map[string]*types.BacktestResult
	saveErr  error
}

func newMockStore() *mockStore {
	return &mockStore{
		configs: make(map[string]types.BacktestConfig),
		results: make(map[string]*types.BacktestResult),
	}
}

func (m *mockStore) SaveConfig(_ context.Context, id string, cfg types.BacktestConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[id] = cfg
	m.statuses = append(m.statuses, statusUpdate{id, types.StatusPending})
	return nil
}

func (m *mockStore) UpdateStatus(_ context.Context, id string, status types.BacktestStatus, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, statusUpdate{id, status})
	return nil
}

func (m *mockStore) SaveResult(ctx context.Context, r *types.BacktestResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.results[r.ID] = r
	m.statuses = append(m.statuses, statusUpdate{r.ID, r.Status})
	return nil
}

type mockObserver struct {
	mu   sync.Mutex
	runs []*types.BacktestResult
}

func (m *mockObserver) ObserveRun(r *types.BacktestResult, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
}

func TestEngine_RunLifecycle(t *testing.T) {
	expiry := day0.AddDate(0, 0, 30)
	data := marketdata.NewMemory(
		callChain(day0, expiry, "100", "5"),
		callChain(day0.AddDate(0, 0, 1), expiry, "101", "8"),
	)
	store := newMockStore()
	obs := &mockObserver{}
	clock := day0
	e := NewEngine(data, store, WithObserver(obs), WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	res, err := e.Run(context.Background(), longCallConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ID == "" {
		t.Fatalf("result has no ID")
	}
	if !res.CompletedAt.After(res.StartedAt) {
		t.Errorf("completed %v not after started %v", res.CompletedAt, res.StartedAt)
	}

	want := []types.BacktestStatus{types.StatusPending, types.StatusRunning, types.StatusCompleted}
	if len(store.statuses) != len(want) {
		t.Fatalf("status updates = %v, want %v", store.statuses, want)
	}
	for i, s := range want {
		if store.statuses[i].status != s || store.statuses[i].id != res.ID {
			t.Errorf("status update %d = %+v, want %s for %s", i, store.statuses[i], s, res.ID)
		}
	}
	if store.results[res.ID] != res {
		t.Errorf("stored result is not the returned result")
	}
	if len(obs.runs) != 1 {
		t.Errorf("observer saw %d runs, want 1", len(obs.runs))
	}
}

func TestEngine_FailedRunIsPersisted(t *testing.T) {
	store := newMockStore()
	e := NewEngine(marketdata.NewMemory(), store)

	res, err := e.Run(context.Background(), longCallConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != types.StatusFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
	last := store.statuses[len(store.statuses)-1]
	if last.status != types.StatusFailed {
		t.Errorf("last persisted status = %s, want failed", last.status)
	}
}

func TestEngine_CancelledRunStillPersisted(t *testing.T) {
	store := newMockStore()
	e := NewEngine(marketdata.NewMemory(), store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Run(ctx, longCallConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := store.results[res.ID]; !ok {
		t.Errorf("cancelled run was not persisted")
	}
}

func TestEngine_Errors(t *testing.T) {
	store := newMockStore()
	e := NewEngine(marketdata.NewMemory(), store)

	cfg := longCallConfig()
	cfg.Symbol = ""
	if _, err := e.Run(context.Background(), cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
	if len(store.configs) != 0 {
		t.Errorf("invalid config was persisted")
	}

	store.saveErr = errors.New("disk full")
	res, err := e.Run(context.Background(), longCallConfig())
	if err == nil || res == nil {
		t.Errorf("Run = (%v, %v), want result and save error", res, err)
	}
}

func TestEngine_SweepPreservesOrder(t *testing.T) {
	src := risingSource(t)
	e := NewEngine(src, nil)

	var cfgs []types.BacktestConfig
	for _, target := range []string{"20", "50", "100", "200"} {
		cfg := risingConfig()
		cfg.EndDate = day0.AddDate(0, 1, 0)
		cfg.Exit.TargetProfitPct = dec(target)
		cfgs = append(cfgs, cfg)
	}

	results, err := e.Sweep(context.Background(), cfgs, 2)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(results) != len(cfgs) {
		t.Fatalf("results = %d, want %d", len(results), len(cfgs))
	}
	ids := make(map[string]bool)
	for i, r := range results {
		single, err := RunBacktest(context.Background(), cfgs[i], risingSource(t))
		if err != nil {
			t.Fatalf("RunBacktest: %v", err)
		}
		if r.TotalTrades != single.TotalTrades || !r.FinalCapital.Equal(single.FinalCapital) {
			t.Errorf("result %d = %d trades %s, want %d trades %s", i, r.TotalTrades, r.FinalCapital, single.TotalTrades, single.FinalCapital)
		}
		if ids[r.ID] {
			t.Errorf("duplicate id %s", r.ID)
		}
		ids[r.ID] = true
	}
}

func TestEngine_SweepRejectsInvalidConfig(t *testing.T) {
	bad := longCallConfig()
	bad.Legs = nil
	_, err := NewEngine(marketdata.NewMemory(), nil).Sweep(context.Background(), []types.BacktestConfig{longCallConfig(), bad}, 4)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
	if want := fmt.Sprintf("config %d", 1); err == nil || !strings.Contains(err.Error(), want) {
		t.Errorf("err = %v, want it to name %q", err, want)
	}
}
