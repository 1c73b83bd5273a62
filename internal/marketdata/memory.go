// Package marketdata provides market data sources that need no database: an
// in-memory snapshot store and a synthetic chain generator.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"optionlab/types"
)

var ErrNoSnapshot = errors.New("no chain snapshot")

// Memory serves snapshots that were added up front. It is safe for
// concurrent use.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[string]map[string]*types.ChainSnapshot
}

func NewMemory(snaps ...*types.ChainSnapshot) *Memory {
	m := &Memory{snapshots: make(map[string]map[string]*types.ChainSnapshot)}
	m.Add(snaps...)
	return m
}

// Add stores snapshots, replacing any earlier snapshot for the same symbol
// and day.
func (m *Memory) Add(snaps ...*types.ChainSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range snaps {
		bySymbol, ok := m.snapshots[s.Symbol]
		if !ok {
			bySymbol = make(map[string]*types.ChainSnapshot)
			m.snapshots[s.Symbol] = bySymbol
		}
		bySymbol[dayKey(s.Date)] = s
	}
}

// TradingDays returns every day in [start, end] that has a snapshot.
func (m *Memory) TradingDays(ctx context.Context, symbol string, start, end time.Time) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var days []time.Time
	for _, s := range m.snapshots[symbol] {
		if types.DaysBetween(start, s.Date) >= 0 && types.DaysBetween(s.Date, end) >= 0 {
			days = append(days, s.Date)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

func (m *Memory) Snapshot(ctx context.Context, symbol string, day time.Time) (*types.ChainSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.snapshots[symbol][dayKey(day)]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", symbol, day.Format(time.DateOnly), ErrNoSnapshot)
	}
	return s, nil
}

func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
