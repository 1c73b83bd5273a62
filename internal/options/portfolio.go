package options

import (
	"github.com/shopspring/decimal"

	"optionlab/types"
)

// LegExposure pairs a leg with its Greeks. Option legs with nil Greeks are
// skipped by Aggregate; stock and future legs ignore the field.
type LegExposure struct {
	Leg    types.Leg
	Greeks *types.Greeks
}

// Aggregate sums quantity and direction signed leg Greeks. Sold legs
// contribute negated Greeks and underlying legs contribute only delta.
func Aggregate(legs []LegExposure) types.PortfolioGreeks {
	out := types.PortfolioGreeks{NetExposure: decimal.Zero}
	for _, le := range legs {
		signedQty := float64(le.Leg.Action.Sign() * le.Leg.Quantity)
		out.NetExposure = out.NetExposure.Add(le.Leg.SignedQuantity().Mul(le.Leg.EntryPrice))

		if !le.Leg.Kind.IsOption() {
			out.Delta += signedQty
			continue
		}
		if le.Greeks == nil {
			continue
		}
		out.Delta += signedQty * le.Greeks.Delta
		out.Gamma += signedQty * le.Greeks.Gamma
		out.Theta += signedQty * le.Greeks.Theta
		out.Vega += signedQty * le.Greeks.Vega
		out.Rho += signedQty * le.Greeks.Rho
	}
	return out
}
