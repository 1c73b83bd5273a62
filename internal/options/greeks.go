// Package options holds the pure analytics over option legs: Black-Scholes
// Greeks and pricing, portfolio aggregation, payoff diagrams and strategy
// classification. Nothing here returns errors; degenerate inputs produce zero
// or neutral values.
package options

import (
	"math"
	"time"

	"optionlab/types"
)

const daysPerYear = 365.0

// ComputeGreeks returns the Black-Scholes-Merton sensitivities of a single
// option. t is the time to expiry in years, r the continuously compounded
// risk-free rate and vol the annualized volatility.
func ComputeGreeks(spot, strike, t, r, vol float64, kind types.InstrumentKind) types.Greeks {
	if !validInputs(spot, strike, t, r, vol) || !kind.IsOption() {
		return types.Greeks{}
	}
	if t == 0 {
		return expiryGreeks(spot, strike, vol, kind)
	}

	sqrtT := math.Sqrt(t)
	d1, d2 := d1d2(spot, strike, t, r, vol)
	pdf := normPDF(d1)
	discount := math.Exp(-r * t)

	g := types.Greeks{
		Gamma:      pdf / (spot * vol * sqrtT),
		Vega:       spot * pdf * sqrtT / 100,
		ImpliedVol: vol,
	}
	decay := -(spot * pdf * vol) / (2 * sqrtT)
	switch kind {
	case types.KindCall:
		g.Delta = normCDF(d1)
		g.Theta = (decay - r*strike*discount*normCDF(d2)) / daysPerYear
		g.Rho = strike * t * discount * normCDF(d2) / 100
	case types.KindPut:
		g.Delta = normCDF(d1) - 1
		g.Theta = (decay + r*strike*discount*normCDF(-d2)) / daysPerYear
		g.Rho = -strike * t * discount * normCDF(-d2) / 100
	}
	return g
}

// LegGreeks computes Greeks for an option leg valued on asOf. Stock and
// future legs get a delta of one per unit and nothing else.
func LegGreeks(leg types.Leg, spot float64, asOf time.Time, r, vol float64) types.Greeks {
	expiry, ok := leg.Expiry()
	if !ok {
		return types.Greeks{Delta: 1}
	}
	strike, _ := leg.Strike()
	return ComputeGreeks(spot, strike.InexactFloat64(), YearsToExpiry(asOf, expiry), r, vol, leg.Kind)
}

// YearsToExpiry counts whole calendar days to expiry on a 365 day year and
// never goes negative.
func YearsToExpiry(asOf, expiry time.Time) float64 {
	days := types.DaysBetween(asOf, expiry)
	if days < 0 {
		return 0
	}
	return float64(days) / daysPerYear
}

func expiryGreeks(spot, strike, vol float64, kind types.InstrumentKind) types.Greeks {
	g := types.Greeks{ImpliedVol: vol}
	switch kind {
	case types.KindCall:
		if spot > strike {
			g.Delta = 1
		}
	case types.KindPut:
		if spot < strike {
			g.Delta = -1
		}
	}
	return g
}

func validInputs(spot, strike, t, r, vol float64) bool {
	for _, v := range []float64{spot, strike, t, r, vol} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return spot > 0 && strike > 0 && t >= 0 && vol > 0
}

func d1d2(spot, strike, t, r, vol float64) (float64, float64) {
	volSqrtT := vol * math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (r+0.5*vol*vol)*t) / volSqrtT
	return d1, d1 - volSqrtT
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
