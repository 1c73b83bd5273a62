package engine

import (
	"errors"
	"fmt"
	"time"

	"optionlab/types"
)

var ErrInvalidConfig = errors.New("invalid backtest config")

// ValidateConfig checks a backtest config before any market data is read.
func ValidateConfig(cfg types.BacktestConfig) error {
	if cfg.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidConfig)
	}
	if cfg.StartDate.IsZero() || cfg.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidConfig)
	}
	if cfg.EndDate.Before(cfg.StartDate) {
		return fmt.Errorf("%w: end date %s before start date %s", ErrInvalidConfig,
			cfg.EndDate.Format(time.DateOnly), cfg.StartDate.Format(time.DateOnly))
	}
	if !cfg.InitialCapital.IsPositive() {
		return fmt.Errorf("%w: initial capital must be positive", ErrInvalidConfig)
	}
	if len(cfg.Legs) == 0 {
		return fmt.Errorf("%w: at least one leg is required", ErrInvalidConfig)
	}

	hasOptions := false
	for i, leg := range cfg.Legs {
		if !leg.Kind.Valid() {
			return fmt.Errorf("%w: leg %d: unknown kind %q", ErrInvalidConfig, i, leg.Kind)
		}
		if !leg.Action.Valid() {
			return fmt.Errorf("%w: leg %d: unknown action %q", ErrInvalidConfig, i, leg.Action)
		}
		if leg.Quantity <= 0 {
			return fmt.Errorf("%w: leg %d: quantity must be positive", ErrInvalidConfig, i)
		}
		if !leg.Kind.IsOption() && leg.StrikeOffset != 0 {
			return fmt.Errorf("%w: leg %d: strike offset on %s leg", ErrInvalidConfig, i, leg.Kind)
		}
		hasOptions = hasOptions || leg.Kind.IsOption()
	}

	if err := validateEntry(cfg.Entry, hasOptions); err != nil {
		return err
	}
	if err := validateExit(cfg.Exit); err != nil {
		return err
	}

	if cfg.CommissionPerLeg.IsNegative() {
		return fmt.Errorf("%w: negative commission", ErrInvalidConfig)
	}
	if cfg.SlippagePct.IsNegative() || cfg.SlippagePct.GreaterThanOrEqual(hundred) {
		return fmt.Errorf("%w: slippage must be in [0, 100)", ErrInvalidConfig)
	}
	if cfg.RiskFreeRate < 0 || cfg.RiskFreeRate >= 1 {
		return fmt.Errorf("%w: risk-free rate %v outside [0, 1)", ErrInvalidConfig, cfg.RiskFreeRate)
	}
	return nil
}

func validateEntry(e types.EntryRules, hasOptions bool) error {
	if hasOptions {
		if e.DaysToExpiry <= 0 {
			return fmt.Errorf("%w: days to expiry must be positive", ErrInvalidConfig)
		}
		if e.DTETolerance < 0 {
			return fmt.Errorf("%w: negative DTE tolerance", ErrInvalidConfig)
		}
		switch e.StrikeSelection {
		case types.StrikeATM, types.StrikeOTM, types.StrikeITM:
		case types.StrikeDelta:
			if e.DeltaTarget <= 0 || e.DeltaTarget >= 1 {
				return fmt.Errorf("%w: delta target %v outside (0, 1)", ErrInvalidConfig, e.DeltaTarget)
			}
		default:
			return fmt.Errorf("%w: unknown strike selection %q", ErrInvalidConfig, e.StrikeSelection)
		}
	}
	if e.EntryTime != "" {
		if _, err := time.Parse("15:04", e.EntryTime); err != nil {
			return fmt.Errorf("%w: entry time %q is not HH:MM", ErrInvalidConfig, e.EntryTime)
		}
	}
	if e.MinPremium.IsNegative() || e.MaxPremium.IsNegative() {
		return fmt.Errorf("%w: negative premium bound", ErrInvalidConfig)
	}
	if e.MaxPremium.IsPositive() && e.MaxPremium.LessThan(e.MinPremium) {
		return fmt.Errorf("%w: max premium %s below min premium %s", ErrInvalidConfig, e.MaxPremium, e.MinPremium)
	}
	return nil
}

func validateExit(e types.ExitRules) error {
	if e.TargetProfitPct.IsNegative() || e.StopLossPct.IsNegative() || e.TrailingStopPct.IsNegative() {
		return fmt.Errorf("%w: exit percentages must not be negative", ErrInvalidConfig)
	}
	if e.ExitDaysToExpiry < 0 {
		return fmt.Errorf("%w: negative exit days to expiry", ErrInvalidConfig)
	}
	return nil
}

type runOptions struct {
	dayHook func(day time.Time)
}

// RunOption customizes a single RunBacktest call.
type RunOption func(*runOptions)

// WithDayHook registers fn to be called after every processed trading day.
func WithDayHook(fn func(day time.Time)) RunOption {
	return func(o *runOptions) {
		o.dayHook = fn
	}
}
