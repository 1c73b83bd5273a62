package engine

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"optionlab/internal/options"
	"optionlab/types"
)

// selectExpiry picks the expiry whose days-to-expiry is nearest the target
// within tolerance. Ties go to the earlier expiry.
func selectExpiry(expiries []time.Time, day time.Time, target, tolerance int) (time.Time, bool) {
	var best time.Time
	bestDiff, found := 0, false
	for _, exp := range expiries {
		dte := types.DaysBetween(day, exp)
		if dte <= 0 {
			continue
		}
		diff := dte - target
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			continue
		}
		if !found || diff < bestDiff {
			best, bestDiff, found = exp, diff, true
		}
	}
	return best, found
}

// atmIndex returns the index of the strike nearest spot. Ties go to the
// lower strike.
func atmIndex(strikes []decimal.Decimal, spot decimal.Decimal) int {
	best := -1
	var bestDiff decimal.Decimal
	for i, k := range strikes {
		diff := k.Sub(spot).Abs()
		if best < 0 || diff.LessThan(bestDiff) {
			best, bestDiff = i, diff
		}
	}
	return best
}

// deltaIndex returns the index of the strike whose absolute delta is nearest
// target. Quotes without a usable volatility are skipped.
func deltaIndex(snap *types.ChainSnapshot, expiry time.Time, kind types.InstrumentKind, strikes []decimal.Decimal, target, rate float64) int {
	spot := snap.Spot.InexactFloat64()
	t := options.YearsToExpiry(snap.Date, expiry)
	best := -1
	bestDiff := math.Inf(1)
	for i, k := range strikes {
		q, ok := snap.Quote(expiry, k, kind)
		if !ok {
			continue
		}
		vol := quoteVol(q, spot, t, rate)
		if vol <= 0 {
			continue
		}
		g := options.ComputeGreeks(spot, k.InexactFloat64(), t, rate, vol, kind)
		if diff := math.Abs(math.Abs(g.Delta) - target); diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}

// quoteVol returns the quoted implied volatility, solving it from the
// premium when the feed has none.
func quoteVol(q types.OptionQuote, spot, t, rate float64) float64 {
	if q.ImpliedVol > 0 {
		return q.ImpliedVol
	}
	return options.ImpliedVolatility(q.Premium.InexactFloat64(), spot, q.Strike.InexactFloat64(), t, rate, q.Kind)
}

func selectStrike(snap *types.ChainSnapshot, expiry time.Time, tmpl types.LegTemplate, rules types.EntryRules, rate float64) (decimal.Decimal, bool) {
	strikes := snap.Strikes(expiry, tmpl.Kind)
	if len(strikes) == 0 {
		return decimal.Zero, false
	}

	var idx int
	switch rules.StrikeSelection {
	case types.StrikeDelta:
		idx = deltaIndex(snap, expiry, tmpl.Kind, strikes, rules.DeltaTarget, rate)
		if idx < 0 {
			return decimal.Zero, false
		}
	case types.StrikeOTM:
		idx = atmIndex(strikes, snap.Spot) + moneynessStep(tmpl.Kind)
	case types.StrikeITM:
		idx = atmIndex(strikes, snap.Spot) - moneynessStep(tmpl.Kind)
	default:
		idx = atmIndex(strikes, snap.Spot)
	}

	idx += tmpl.StrikeOffset
	if idx < 0 || idx >= len(strikes) {
		return decimal.Zero, false
	}
	return strikes[idx], true
}

// moneynessStep is the strike direction that moves a leg out of the money.
func moneynessStep(kind types.InstrumentKind) int {
	if kind == types.KindPut {
		return -1
	}
	return 1
}

func withinPremiumBounds(premium decimal.Decimal, rules types.EntryRules) bool {
	if rules.MinPremium.IsPositive() && premium.LessThan(rules.MinPremium) {
		return false
	}
	if rules.MaxPremium.IsPositive() && premium.GreaterThan(rules.MaxPremium) {
		return false
	}
	return true
}

// open builds a position from the leg templates against today's chain. The
// returned string explains a skipped entry.
func (s *simulation) open(snap *types.ChainSnapshot) (*position, string) {
	cfg := s.cfg

	var expiry time.Time
	if s.hasOptions {
		var ok bool
		expiry, ok = selectExpiry(snap.Expiries(), snap.Date, cfg.Entry.DaysToExpiry, cfg.Entry.DTETolerance)
		if !ok {
			return nil, "no expiry within tolerance"
		}
	}

	legs := make([]types.Leg, 0, len(cfg.Legs))
	marks := make([]decimal.Decimal, 0, len(cfg.Legs))
	exposures := make([]options.LegExposure, 0, len(cfg.Legs))
	spot := snap.Spot.InexactFloat64()
	t := options.YearsToExpiry(snap.Date, expiry)

	for i, tmpl := range cfg.Legs {
		if !tmpl.Kind.IsOption() {
			fill := slip(snap.Spot, tmpl.Action, cfg.SlippagePct)
			leg, err := types.NewUnderlyingLeg(i, tmpl.Kind, tmpl.Action, tmpl.Quantity, fill)
			if err != nil {
				return nil, err.Error()
			}
			legs = append(legs, leg)
			marks = append(marks, snap.Spot)
			exposures = append(exposures, options.LegExposure{Leg: leg})
			continue
		}

		strike, ok := selectStrike(snap, expiry, tmpl, cfg.Entry, cfg.RiskFreeRate)
		if !ok {
			return nil, "no strike for leg " + string(tmpl.Kind)
		}
		q, ok := snap.Quote(expiry, strike, tmpl.Kind)
		if !ok {
			return nil, "no quote for " + string(tmpl.Kind) + " " + strike.String()
		}
		if !withinPremiumBounds(q.Premium, cfg.Entry) {
			return nil, "premium " + q.Premium.String() + " outside bounds"
		}

		fill := slip(q.Premium, tmpl.Action, cfg.SlippagePct)
		leg, err := types.NewOptionLeg(i, tmpl.Kind, tmpl.Action, strike, expiry, tmpl.Quantity, fill)
		if err != nil {
			return nil, err.Error()
		}
		g := options.ComputeGreeks(spot, strike.InexactFloat64(), t, cfg.RiskFreeRate, quoteVol(q, spot, t, cfg.RiskFreeRate), tmpl.Kind)
		legs = append(legs, leg)
		marks = append(marks, q.Premium)
		exposures = append(exposures, options.LegExposure{Leg: leg, Greeks: &g})
	}

	commission := cfg.CommissionPerLeg.Mul(decimal.NewFromInt(int64(len(legs))))
	pos := newPosition(snap.Date, legs, marks, commission)

	// A net debit must be covered by current equity.
	required := decimal.Max(pos.entryValue, decimal.Zero).Add(commission)
	if required.GreaterThan(s.equity()) {
		return nil, "insufficient capital for " + required.String()
	}

	pos.greeks = options.Aggregate(exposures)
	return pos, ""
}
