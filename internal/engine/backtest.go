package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"optionlab/internal/options"
	"optionlab/types"
)

// state is one node of the position lifecycle. step consumes a trading day
// and returns the next state.
type state interface {
	step(s *simulation, snap *types.ChainSnapshot) (state, error)
}

type flat struct{}

type holding struct {
	pos *position
}

func (flat) step(s *simulation, snap *types.ChainSnapshot) (state, error) {
	pos, skipped := s.open(snap)
	if pos == nil {
		s.log.Debug().Time("day", snap.Date).Str("reason", skipped).Msg("no entry")
		return flat{}, nil
	}
	if s.result.Classification == nil {
		c := options.Classify(pos.legs)
		s.result.Classification = &c
	}
	s.log.Debug().
		Time("day", snap.Date).
		Str("entry_value", pos.entryValue.String()).
		Float64("delta", pos.greeks.Delta).
		Msg("opened position")
	return holding{pos: pos}, nil
}

func (h holding) step(s *simulation, snap *types.ChainSnapshot) (state, error) {
	marks, err := h.pos.mark(snap)
	if err != nil {
		return h, err
	}
	h.pos.update(marks)

	dte, hasOptions := h.pos.daysToExpiry(snap.Date)
	reason, exit := evaluateExit(s.cfg.Exit, exitInput{
		pnlPct:     h.pos.pnlPct(),
		peakPct:    h.pos.peakPct,
		dte:        dte,
		hasOptions: hasOptions,
	})
	if !exit {
		return h, nil
	}
	s.closePosition(h.pos, snap.Date, reason)
	return flat{}, nil
}

type simulation struct {
	cfg        types.BacktestConfig
	data       MarketDataSource
	opts       runOptions
	log        *zerolog.Logger
	hasOptions bool

	state    state
	realized decimal.Decimal
	result   *types.BacktestResult
}

// RunBacktest simulates cfg day by day over data. An invalid config returns
// an error and no result; every other failure is reported on a result with
// status failed. The result carries no ID or timestamps.
func RunBacktest(ctx context.Context, cfg types.BacktestConfig, data MarketDataSource, opts ...RunOption) (*types.BacktestResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &simulation{
		cfg:      cfg,
		data:     data,
		opts:     o,
		log:      zerolog.Ctx(ctx),
		state:    flat{},
		realized: decimal.Zero,
		result: &types.BacktestResult{
			Symbol:         cfg.Symbol,
			Status:         types.StatusRunning,
			InitialCapital: cfg.InitialCapital,
		},
	}
	for _, leg := range cfg.Legs {
		s.hasOptions = s.hasOptions || leg.Kind.IsOption()
	}

	s.run(ctx)
	return s.result, nil
}

func (s *simulation) run(ctx context.Context) {
	days, err := s.data.TradingDays(ctx, s.cfg.Symbol, s.cfg.StartDate, s.cfg.EndDate)
	if err != nil {
		s.fail(fmt.Errorf("load trading days: %w", err))
		return
	}
	if len(days) == 0 {
		s.fail(errors.New("no trading days in range"))
		return
	}

	var last time.Time
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			s.fail(err)
			return
		}
		snap, err := s.data.Snapshot(ctx, s.cfg.Symbol, day)
		if err != nil {
			s.fail(fmt.Errorf("snapshot %s: %w", day.Format(time.DateOnly), err))
			return
		}
		if err := snap.Validate(); err != nil {
			s.fail(err)
			return
		}

		next, err := s.state.step(s, snap)
		if err != nil {
			s.fail(err)
			return
		}
		s.state = next
		s.result.EquityCurve = append(s.result.EquityCurve, types.EquityPoint{Date: snap.Date, Equity: s.equity()})
		last = snap.Date

		if s.opts.dayHook != nil {
			s.opts.dayHook(day)
		}
	}

	if h, ok := s.state.(holding); ok {
		s.closePosition(h.pos, last, types.ExitEndOfData)
		s.state = flat{}
		s.result.EquityCurve[len(s.result.EquityCurve)-1].Equity = s.equity()
	}

	summarize(s.result, s.cfg.RiskFreeRate)
	s.result.Status = types.StatusCompleted
	s.log.Info().
		Str("symbol", s.cfg.Symbol).
		Int("trades", s.result.TotalTrades).
		Str("final_capital", s.result.FinalCapital.String()).
		Msg("backtest completed")
}

// equity is initial capital plus realized net P/L plus the open position
// marked to market less its entry commission.
func (s *simulation) equity() decimal.Decimal {
	eq := s.cfg.InitialCapital.Add(s.realized)
	if h, ok := s.state.(holding); ok {
		eq = eq.Add(h.pos.unrealized).Sub(h.pos.commission)
	}
	return eq
}

func (s *simulation) closePosition(pos *position, day time.Time, reason types.ExitReason) {
	trade := pos.close(day, reason, s.cfg.SlippagePct, s.cfg.CommissionPerLeg)
	s.realized = s.realized.Add(trade.PnL)
	s.result.Trades = append(s.result.Trades, trade)
	s.log.Debug().
		Time("day", day).
		Str("reason", string(reason)).
		Str("pnl", trade.PnL.String()).
		Msg("closed position")
}

func (s *simulation) fail(err error) {
	s.result.Status = types.StatusFailed
	s.result.Error = err.Error()
	s.log.Error().Err(err).Str("symbol", s.cfg.Symbol).Msg("backtest failed")
}
