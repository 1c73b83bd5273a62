package options

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"optionlab/types"
)

const (
	singleLegConfidence = 65
	customConfidence    = 40
)

// legShape is a leg reduced to what classification looks at. Legs with the
// same kind, action, strike and expiry are merged by summing quantity.
type legShape struct {
	kind   types.InstrumentKind
	action types.Action
	strike decimal.Decimal
	expiry time.Time
	qty    int64
}

func (l legShape) long() bool  { return l.action == types.ActionBuy }
func (l legShape) short() bool { return l.action == types.ActionSell }

type shape struct {
	calls      []legShape
	puts       []legShape
	underlying []legShape
}

func (s shape) count() int {
	return len(s.calls) + len(s.puts) + len(s.underlying)
}

// is reports whether the shape has exactly the given number of call, put
// and underlying legs.
func (s shape) is(calls, puts, underlying int) bool {
	return len(s.calls) == calls && len(s.puts) == puts && len(s.underlying) == underlying
}

type rule struct {
	name       string
	category   types.StrategyCategory
	risk       types.RiskProfile
	confidence int
	match      func(s shape) bool
}

// Catalog returns the names of the named strategies in match order.
func Catalog() []string {
	names := make([]string, 0, len(catalog))
	for _, r := range catalog {
		names = append(names, r.name)
	}
	return names
}

// Classify matches legs against the strategy catalog. The first matching rule
// wins; unmatched single legs get a naked classification and anything else
// is custom with reduced confidence.
func Classify(legs []types.Leg) types.StrategyClassification {
	out := types.StrategyClassification{
		Name:     types.StrategyNone,
		Category: types.CategoryNeutral,
		Risk:     types.RiskDefined,
		Legs:     append([]types.Leg(nil), legs...),
	}
	if len(legs) == 0 {
		return out
	}

	s := shapeOf(legs)
	for _, r := range catalog {
		if r.match(s) {
			out.Name, out.Category, out.Risk, out.Confidence = r.name, r.category, r.risk, r.confidence
			return out
		}
	}

	if s.count() == 1 {
		out.Name, out.Category, out.Risk = singleLeg(s)
		out.Confidence = singleLegConfidence
		return out
	}

	out.Name = types.StrategyCustom
	out.Category = directionalBias(s)
	out.Risk = coverage(s)
	out.Confidence = customConfidence
	return out
}

func shapeOf(legs []types.Leg) shape {
	var merged []legShape
	for _, leg := range legs {
		ls := legShape{kind: leg.Kind, action: leg.Action, qty: leg.Quantity}
		ls.strike, _ = leg.Strike()
		ls.expiry, _ = leg.Expiry()

		found := false
		for i := range merged {
			m := &merged[i]
			if m.kind == ls.kind && m.action == ls.action && m.strike.Equal(ls.strike) && m.expiry.Equal(ls.expiry) {
				m.qty += ls.qty
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, ls)
		}
	}

	var s shape
	for _, m := range merged {
		switch m.kind {
		case types.KindCall:
			s.calls = append(s.calls, m)
		case types.KindPut:
			s.puts = append(s.puts, m)
		default:
			s.underlying = append(s.underlying, m)
		}
	}
	byStrike := func(ls []legShape) {
		sort.SliceStable(ls, func(i, j int) bool {
			if !ls[i].strike.Equal(ls[j].strike) {
				return ls[i].strike.LessThan(ls[j].strike)
			}
			return ls[i].expiry.Before(ls[j].expiry)
		})
	}
	byStrike(s.calls)
	byStrike(s.puts)
	return s
}

func sameExpiry(legs ...legShape) bool {
	for _, l := range legs[1:] {
		if !l.expiry.Equal(legs[0].expiry) {
			return false
		}
	}
	return true
}

func equalQty(legs ...legShape) bool {
	for _, l := range legs[1:] {
		if l.qty != legs[0].qty {
			return false
		}
	}
	return true
}

func vertical(legs []legShape, lowLong bool) bool {
	lo, hi := legs[0], legs[1]
	return sameExpiry(lo, hi) && equalQty(lo, hi) &&
		lo.strike.LessThan(hi.strike) &&
		lo.long() == lowLong && hi.long() == !lowLong
}

func butterfly(legs []legShape) bool {
	lo, mid, hi := legs[0], legs[1], legs[2]
	return sameExpiry(lo, mid, hi) &&
		lo.long() && mid.short() && hi.long() &&
		lo.qty == hi.qty && mid.qty == 2*lo.qty &&
		mid.strike.Sub(lo.strike).Equal(hi.strike.Sub(mid.strike))
}

func ironWings(s shape, sameBody bool) bool {
	if !s.is(2, 2, 0) {
		return false
	}
	lp, sp, sc, lc := s.puts[0], s.puts[1], s.calls[0], s.calls[1]
	if !sameExpiry(lp, sp, sc, lc) || !equalQty(lp, sp, sc, lc) {
		return false
	}
	if !lp.long() || !sp.short() || !sc.short() || !lc.long() {
		return false
	}
	if !lp.strike.LessThan(sp.strike) || !sc.strike.LessThan(lc.strike) {
		return false
	}
	if sameBody {
		return sp.strike.Equal(sc.strike)
	}
	return sp.strike.LessThan(sc.strike)
}

func longUnderlying(s shape) bool {
	return len(s.underlying) == 1 && s.underlying[0].long()
}

func pair(s shape, callLong, putLong bool, sameStrike bool) bool {
	if !s.is(1, 1, 0) {
		return false
	}
	c, p := s.calls[0], s.puts[0]
	if !sameExpiry(c, p) || !equalQty(c, p) || c.long() != callLong || p.long() != putLong {
		return false
	}
	if sameStrike {
		return c.strike.Equal(p.strike)
	}
	return p.strike.LessThan(c.strike)
}

var catalog = []rule{
	{"iron_condor", types.CategoryNeutral, types.RiskDefined, 95, func(s shape) bool {
		return ironWings(s, false)
	}},
	{"iron_butterfly", types.CategoryNeutral, types.RiskDefined, 95, func(s shape) bool {
		return ironWings(s, true)
	}},
	{"call_butterfly", types.CategoryNeutral, types.RiskDefined, 90, func(s shape) bool {
		return s.is(3, 0, 0) && butterfly(s.calls)
	}},
	{"put_butterfly", types.CategoryNeutral, types.RiskDefined, 90, func(s shape) bool {
		return s.is(0, 3, 0) && butterfly(s.puts)
	}},
	{"collar", types.CategoryBullish, types.RiskDefined, 90, func(s shape) bool {
		if !s.is(1, 1, 1) || !longUnderlying(s) {
			return false
		}
		c, p := s.calls[0], s.puts[0]
		return c.short() && p.long() && sameExpiry(c, p) &&
			equalQty(c, p, s.underlying[0]) && p.strike.LessThan(c.strike)
	}},
	{"covered_call", types.CategoryBullish, types.RiskDefined, 90, func(s shape) bool {
		return s.is(1, 0, 1) && longUnderlying(s) && s.calls[0].short() && equalQty(s.calls[0], s.underlying[0])
	}},
	{"protective_put", types.CategoryBullish, types.RiskDefined, 90, func(s shape) bool {
		return s.is(0, 1, 1) && longUnderlying(s) && s.puts[0].long() && equalQty(s.puts[0], s.underlying[0])
	}},
	{"calendar_spread", types.CategoryNeutral, types.RiskDefined, 85, func(s shape) bool {
		var legs []legShape
		switch {
		case s.is(2, 0, 0):
			legs = s.calls
		case s.is(0, 2, 0):
			legs = s.puts
		default:
			return false
		}
		near, far := legs[0], legs[1]
		return near.strike.Equal(far.strike) && near.expiry.Before(far.expiry) &&
			near.short() && far.long() && equalQty(near, far)
	}},
	{"long_straddle", types.CategoryVolatile, types.RiskDefined, 95, func(s shape) bool {
		return pair(s, true, true, true)
	}},
	{"short_straddle", types.CategoryNeutral, types.RiskUndefined, 95, func(s shape) bool {
		return pair(s, false, false, true)
	}},
	{"long_strangle", types.CategoryVolatile, types.RiskDefined, 90, func(s shape) bool {
		return pair(s, true, true, false)
	}},
	{"short_strangle", types.CategoryNeutral, types.RiskUndefined, 90, func(s shape) bool {
		return pair(s, false, false, false)
	}},
	{"bull_call_spread", types.CategoryBullish, types.RiskDefined, 95, func(s shape) bool {
		return s.is(2, 0, 0) && vertical(s.calls, true)
	}},
	{"bear_call_spread", types.CategoryBearish, types.RiskDefined, 95, func(s shape) bool {
		return s.is(2, 0, 0) && vertical(s.calls, false)
	}},
	{"bull_put_spread", types.CategoryBullish, types.RiskDefined, 95, func(s shape) bool {
		return s.is(0, 2, 0) && vertical(s.puts, true)
	}},
	{"bear_put_spread", types.CategoryBearish, types.RiskDefined, 95, func(s shape) bool {
		return s.is(0, 2, 0) && vertical(s.puts, false)
	}},
	{"synthetic_long", types.CategoryBullish, types.RiskUndefined, 85, func(s shape) bool {
		return pair(s, true, false, true)
	}},
	{"synthetic_short", types.CategoryBearish, types.RiskUndefined, 85, func(s shape) bool {
		return pair(s, false, true, true)
	}},
	{"risk_reversal", types.CategoryBullish, types.RiskUndefined, 80, func(s shape) bool {
		return pair(s, true, false, false)
	}},
}

func singleLeg(s shape) (string, types.StrategyCategory, types.RiskProfile) {
	var l legShape
	switch {
	case len(s.calls) == 1:
		l = s.calls[0]
	case len(s.puts) == 1:
		l = s.puts[0]
	default:
		l = s.underlying[0]
	}

	prefix := "short_"
	risk := types.RiskUndefined
	if l.long() {
		prefix = "long_"
		risk = types.RiskDefined
	}
	bullish := l.long()
	if l.kind == types.KindPut {
		bullish = !bullish
	}
	category := types.CategoryBearish
	if bullish {
		category = types.CategoryBullish
	}
	return prefix + string(l.kind), category, risk
}

// directionalBias sums a rough unit delta per leg: long calls and long
// underlying count up, long puts count down, sold legs flip.
func directionalBias(s shape) types.StrategyCategory {
	var bias int64
	for _, l := range s.calls {
		bias += l.action.Sign() * l.qty
	}
	for _, l := range s.underlying {
		bias += l.action.Sign() * l.qty
	}
	for _, l := range s.puts {
		bias -= l.action.Sign() * l.qty
	}
	switch {
	case bias > 0:
		return types.CategoryBullish
	case bias < 0:
		return types.CategoryBearish
	}
	return types.CategoryNeutral
}

// coverage reports undefined risk when short calls exceed long calls plus
// long underlying, short puts exceed long puts, or the underlying is net
// short.
func coverage(s shape) types.RiskProfile {
	var longCalls, shortCalls, longPuts, shortPuts, netUnderlying int64
	for _, l := range s.calls {
		if l.long() {
			longCalls += l.qty
		} else {
			shortCalls += l.qty
		}
	}
	for _, l := range s.puts {
		if l.long() {
			longPuts += l.qty
		} else {
			shortPuts += l.qty
		}
	}
	for _, l := range s.underlying {
		netUnderlying += l.action.Sign() * l.qty
	}

	if netUnderlying < 0 {
		return types.RiskUndefined
	}
	if shortCalls > longCalls+netUnderlying || shortPuts > longPuts {
		return types.RiskUndefined
	}
	return types.RiskDefined
}
