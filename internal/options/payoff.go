package options

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"optionlab/types"
)

const (
	defaultRangePct = 0.30
	minSamples      = 301
	maxSamples      = 10001
)

// PriceRange bounds the underlying prices sampled by ComputePayoff. A zero
// Step picks one automatically.
type PriceRange struct {
	Low  decimal.Decimal
	High decimal.Decimal
	Step decimal.Decimal
}

// Valuation prices unexpired options with Black-Scholes on Date instead of
// settling them at intrinsic value.
type Valuation struct {
	Date       time.Time
	Volatility float64
	Rate       float64
}

type valueFunc func(leg types.Leg, price decimal.Decimal) decimal.Decimal

// ComputePayoff returns the expiry profit/loss profile of legs around
// currentPrice. A nil priceRange spans currentPrice ±30%.
func ComputePayoff(legs []types.Leg, currentPrice decimal.Decimal, priceRange *PriceRange) types.PayoffDiagram {
	return computePayoff(legs, currentPrice, priceRange, expiryValue)
}

// ComputePayoffAt is ComputePayoff for a valuation date before expiry.
func ComputePayoffAt(legs []types.Leg, currentPrice decimal.Decimal, priceRange *PriceRange, v Valuation) types.PayoffDiagram {
	return computePayoff(legs, currentPrice, priceRange, func(leg types.Leg, price decimal.Decimal) decimal.Decimal {
		expiry, ok := leg.Expiry()
		if !ok || !expiry.After(v.Date) {
			return expiryValue(leg, price)
		}
		strike, _ := leg.Strike()
		p := BlackScholesPrice(price.InexactFloat64(), strike.InexactFloat64(), YearsToExpiry(v.Date, expiry), v.Rate, v.Volatility, leg.Kind)
		return decimal.NewFromFloat(p)
	})
}

// IntrinsicValue is the per-unit settlement value of an instrument at spot.
// Stock and future legs settle at spot.
func IntrinsicValue(kind types.InstrumentKind, strike, spot decimal.Decimal) decimal.Decimal {
	switch kind {
	case types.KindCall:
		return decimal.Max(spot.Sub(strike), decimal.Zero)
	case types.KindPut:
		return decimal.Max(strike.Sub(spot), decimal.Zero)
	}
	return spot
}

// LegPnL is the expiry profit/loss of one leg at an underlying price. A leg
// that already has an exit price contributes its realized result.
func LegPnL(leg types.Leg, price decimal.Decimal) decimal.Decimal {
	return legPnL(leg, price, expiryValue)
}

func legPnL(leg types.Leg, price decimal.Decimal, value valueFunc) decimal.Decimal {
	exit := leg.ExitPrice
	var v decimal.Decimal
	if exit != nil {
		v = *exit
	} else {
		v = value(leg, price)
	}
	return v.Sub(leg.Cost()).Mul(leg.SignedQuantity())
}

func expiryValue(leg types.Leg, price decimal.Decimal) decimal.Decimal {
	strike, _ := leg.Strike()
	return IntrinsicValue(leg.Kind, strike, price)
}

func computePayoff(legs []types.Leg, currentPrice decimal.Decimal, priceRange *PriceRange, value valueFunc) types.PayoffDiagram {
	diagram := types.PayoffDiagram{
		MaxProfit:  decimal.Zero,
		MaxLoss:    decimal.Zero,
		CurrentPnL: decimal.Zero,
	}
	prices := samplePrices(legs, currentPrice, priceRange)
	if len(prices) == 0 {
		return diagram
	}

	total := func(p decimal.Decimal) decimal.Decimal {
		sum := decimal.Zero
		for _, leg := range legs {
			sum = sum.Add(legPnL(leg, p, value))
		}
		return sum
	}

	diagram.Points = make([]types.PayoffPoint, 0, len(prices))
	for i, p := range prices {
		pnl := total(p)
		diagram.Points = append(diagram.Points, types.PayoffPoint{Price: p, PnL: pnl})
		if i == 0 || pnl.GreaterThan(diagram.MaxProfit) {
			diagram.MaxProfit = pnl
		}
		if i == 0 || pnl.LessThan(diagram.MaxLoss) {
			diagram.MaxLoss = pnl
		}
	}

	diagram.Breakevens = breakevens(diagram.Points)
	if !diagram.MaxLoss.IsZero() {
		rr := diagram.MaxProfit.Div(diagram.MaxLoss).Abs()
		diagram.RiskReward = &rr
	}
	if pnl, ok := interpolate(diagram.Points, currentPrice); ok {
		diagram.CurrentPnL = pnl
	} else {
		diagram.CurrentPnL = total(currentPrice)
	}
	return diagram
}

// samplePrices builds an increasing grid over the range and inserts every
// strike inside it so kinks in the curve are sampled exactly.
func samplePrices(legs []types.Leg, currentPrice decimal.Decimal, priceRange *PriceRange) []decimal.Decimal {
	var low, high, step decimal.Decimal
	if priceRange != nil && priceRange.High.GreaterThan(priceRange.Low) {
		low, high, step = priceRange.Low, priceRange.High, priceRange.Step
	} else {
		if !currentPrice.IsPositive() {
			return nil
		}
		width := currentPrice.Mul(decimal.NewFromFloat(defaultRangePct))
		low, high = currentPrice.Sub(width), currentPrice.Add(width)
	}
	if low.IsNegative() {
		low = decimal.Zero
	}

	width := high.Sub(low)
	if !step.IsPositive() {
		n := int(math.Ceil(width.InexactFloat64())) + 1
		if n < minSamples {
			n = minSamples
		}
		if n > maxSamples {
			n = maxSamples
		}
		step = width.Div(decimal.NewFromInt(int64(n - 1)))
	} else if width.Div(step).GreaterThan(decimal.NewFromInt(maxSamples - 1)) {
		step = width.Div(decimal.NewFromInt(maxSamples - 1))
	}

	prices := make([]decimal.Decimal, 0, maxSamples)
	for p := low; p.LessThan(high); p = p.Add(step) {
		prices = append(prices, p)
	}
	prices = append(prices, high)

	for _, leg := range legs {
		if k, ok := leg.Strike(); ok && k.GreaterThan(low) && k.LessThan(high) {
			prices = append(prices, k)
		}
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })

	out := prices[:1]
	for _, p := range prices[1:] {
		if p.GreaterThan(out[len(out)-1]) {
			out = append(out, p)
		}
	}
	return out
}

// breakevens interpolates every sign change between adjacent samples. A run
// of exact zeros yields its first and last price.
func breakevens(points []types.PayoffPoint) []decimal.Decimal {
	var out []decimal.Decimal
	add := func(p decimal.Decimal) {
		if len(out) > 0 && out[len(out)-1].Equal(p) {
			return
		}
		out = append(out, p)
	}
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		if a.PnL.Sign() == b.PnL.Sign() {
			continue
		}
		switch {
		case a.PnL.IsZero():
			add(a.Price)
		case b.PnL.IsZero():
			add(b.Price)
		default:
			frac := a.PnL.Neg().Div(b.PnL.Sub(a.PnL))
			add(a.Price.Add(b.Price.Sub(a.Price).Mul(frac)))
		}
	}
	return out
}

func interpolate(points []types.PayoffPoint, price decimal.Decimal) (decimal.Decimal, bool) {
	if len(points) == 0 || price.LessThan(points[0].Price) || price.GreaterThan(points[len(points)-1].Price) {
		return decimal.Zero, false
	}
	i := sort.Search(len(points), func(i int) bool { return points[i].Price.GreaterThanOrEqual(price) })
	if points[i].Price.Equal(price) {
		return points[i].PnL, true
	}
	a, b := points[i-1], points[i]
	frac := price.Sub(a.Price).Div(b.Price.Sub(a.Price))
	return a.PnL.Add(b.PnL.Sub(a.PnL).Mul(frac)), true
}
