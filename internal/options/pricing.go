package options

import (
	"math"

	"optionlab/types"
)

const (
	minVol       = 1e-4
	maxVol       = 5.0
	ivTolerance  = 1e-6
	ivIterations = 100
)

// BlackScholesPrice is the theoretical premium of a European option. At
// expiry it is the intrinsic value; invalid inputs price at zero.
func BlackScholesPrice(spot, strike, t, r, vol float64, kind types.InstrumentKind) float64 {
	if !validInputs(spot, strike, t, r, vol) || !kind.IsOption() {
		return 0
	}
	if t == 0 {
		return intrinsic(kind, strike, spot)
	}
	d1, d2 := d1d2(spot, strike, t, r, vol)
	discount := math.Exp(-r * t)
	if kind == types.KindCall {
		return spot*normCDF(d1) - strike*discount*normCDF(d2)
	}
	return strike*discount*normCDF(-d2) - spot*normCDF(-d1)
}

// ImpliedVolatility solves for the volatility that reproduces price by
// bisection. It returns zero when the price is outside the arbitrage bounds
// or the option has expired.
func ImpliedVolatility(price, spot, strike, t, r float64, kind types.InstrumentKind) float64 {
	if t <= 0 || price <= 0 || !kind.IsOption() {
		return 0
	}
	lo, hi := minVol, maxVol
	if price < BlackScholesPrice(spot, strike, t, r, lo, kind) || price > BlackScholesPrice(spot, strike, t, r, hi, kind) {
		return 0
	}
	for i := 0; i < ivIterations; i++ {
		mid := (lo + hi) / 2
		p := BlackScholesPrice(spot, strike, t, r, mid, kind)
		if math.Abs(p-price) < ivTolerance {
			return mid
		}
		if p < price {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

func intrinsic(kind types.InstrumentKind, strike, spot float64) float64 {
	switch kind {
	case types.KindCall:
		return math.Max(spot-strike, 0)
	case types.KindPut:
		return math.Max(strike-spot, 0)
	}
	return 0
}
