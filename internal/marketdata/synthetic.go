package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"optionlab/internal/options"
	"optionlab/types"
)

// SyntheticConfig describes a generated underlying and its option chains.
// The price path starts at StartPrice on Anchor and moves by DailyDriftPct
// per weekday, plus seeded Gaussian noise of NoisePct when set.
type SyntheticConfig struct {
	Symbol             string
	Anchor             time.Time
	StartPrice         decimal.Decimal
	DailyDriftPct      float64
	NoisePct           float64
	Seed               int64
	Volatility         float64
	RiskFreeRate       float64
	StrikeStep         decimal.Decimal
	StrikesPerSide     int
	ExpiryIntervalDays int
	MaxExpiryDays      int
}

func (c SyntheticConfig) validate() error {
	switch {
	case c.Symbol == "":
		return errors.New("synthetic: symbol is required")
	case c.Anchor.IsZero():
		return errors.New("synthetic: anchor date is required")
	case !c.StartPrice.IsPositive():
		return errors.New("synthetic: start price must be positive")
	case c.Volatility <= 0:
		return errors.New("synthetic: volatility must be positive")
	case !c.StrikeStep.IsPositive():
		return errors.New("synthetic: strike step must be positive")
	case c.StrikesPerSide <= 0:
		return errors.New("synthetic: strikes per side must be positive")
	case c.ExpiryIntervalDays <= 0 || c.MaxExpiryDays <= 0:
		return errors.New("synthetic: expiry interval and horizon must be positive")
	case c.DailyDriftPct <= -100:
		return errors.New("synthetic: drift must be above -100%")
	}
	return nil
}

// Synthetic generates weekday chain snapshots priced with Black-Scholes at
// a flat volatility. Output is deterministic for a given config.
type Synthetic struct {
	cfg SyntheticConfig

	mu   sync.Mutex
	rng  *rand.Rand
	path []float64
}

func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Anchor = truncateDay(cfg.Anchor)
	return &Synthetic{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		path: []float64{cfg.StartPrice.InexactFloat64()},
	}, nil
}

// TradingDays returns the weekdays in [start, end] on or after the anchor.
func (s *Synthetic) TradingDays(ctx context.Context, symbol string, start, end time.Time) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if symbol != s.cfg.Symbol {
		return nil, nil
	}
	day := truncateDay(start)
	if day.Before(s.cfg.Anchor) {
		day = s.cfg.Anchor
	}
	last := truncateDay(end)

	var days []time.Time
	for ; !day.After(last); day = day.AddDate(0, 0, 1) {
		if isWeekday(day) {
			days = append(days, day)
		}
	}
	return days, nil
}

func (s *Synthetic) Snapshot(ctx context.Context, symbol string, day time.Time) (*types.ChainSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	day = truncateDay(day)
	if symbol != s.cfg.Symbol || day.Before(s.cfg.Anchor) || !isWeekday(day) {
		return nil, fmt.Errorf("%s %s: %w", symbol, day.Format(time.DateOnly), ErrNoSnapshot)
	}

	spot := decimal.NewFromFloat(s.priceAt(weekdaysBetween(s.cfg.Anchor, day))).Round(2)
	snap := &types.ChainSnapshot{Symbol: symbol, Date: day, Spot: spot}

	center := spot.Div(s.cfg.StrikeStep).Round(0).Mul(s.cfg.StrikeStep)
	for _, expiry := range s.expiries(day) {
		t := options.YearsToExpiry(day, expiry)
		for i := -s.cfg.StrikesPerSide; i <= s.cfg.StrikesPerSide; i++ {
			strike := center.Add(s.cfg.StrikeStep.Mul(decimal.NewFromInt(int64(i))))
			if !strike.IsPositive() {
				continue
			}
			for _, kind := range []types.InstrumentKind{types.KindCall, types.KindPut} {
				price := options.BlackScholesPrice(spot.InexactFloat64(), strike.InexactFloat64(), t, s.cfg.RiskFreeRate, s.cfg.Volatility, kind)
				snap.Quotes = append(snap.Quotes, types.OptionQuote{
					Expiry:     expiry,
					Strike:     strike,
					Kind:       kind,
					Premium:    decimal.NewFromFloat(price).Round(2),
					ImpliedVol: s.cfg.Volatility,
				})
			}
		}
	}
	return snap, nil
}

// expiries lists the listed expiries after day up to the horizon. Expiries
// fall every ExpiryIntervalDays from the anchor.
func (s *Synthetic) expiries(day time.Time) []time.Time {
	var out []time.Time
	elapsed := types.DaysBetween(s.cfg.Anchor, day)
	k := elapsed/s.cfg.ExpiryIntervalDays + 1
	for {
		expiry := s.cfg.Anchor.AddDate(0, 0, k*s.cfg.ExpiryIntervalDays)
		if types.DaysBetween(day, expiry) > s.cfg.MaxExpiryDays {
			return out
		}
		out = append(out, expiry)
		k++
	}
}

func (s *Synthetic) priceAt(n int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.path) <= n {
		prev := s.path[len(s.path)-1]
		step := s.cfg.DailyDriftPct / 100
		if s.cfg.NoisePct > 0 {
			step += s.rng.NormFloat64() * s.cfg.NoisePct / 100
		}
		s.path = append(s.path, math.Max(prev*(1+step), 0.01))
	}
	return s.path[n]
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// weekdaysBetween counts weekdays in (from, to].
func weekdaysBetween(from, to time.Time) int {
	n := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if isWeekday(d) {
			n++
		}
	}
	return n
}
