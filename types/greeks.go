package types

import "github.com/shopspring/decimal"

// Greeks for one leg on one valuation date. Theta is per calendar day, vega per
// volatility point and rho per rate point. ImpliedVol is zero when unknown.
type Greeks struct {
	Delta      float64 `json:"delta"`
	Gamma      float64 `json:"gamma"`
	Theta      float64 `json:"theta"`
	Vega       float64 `json:"vega"`
	Rho        float64 `json:"rho"`
	ImpliedVol float64 `json:"impliedVol,omitempty"`
}

type PortfolioGreeks struct {
	Delta       float64         `json:"delta"`
	Gamma       float64         `json:"gamma"`
	Theta       float64         `json:"theta"`
	Vega        float64         `json:"vega"`
	Rho         float64         `json:"rho"`
	NetExposure decimal.Decimal `json:"netExposure"`
}
