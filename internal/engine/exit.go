package engine

import (
	"github.com/shopspring/decimal"

	"optionlab/types"
)

type exitInput struct {
	pnlPct     decimal.Decimal
	peakPct    decimal.Decimal
	dte        int
	hasOptions bool
}

// evaluateExit applies the exit rules in precedence order: stop loss, target
// profit, trailing stop, days to expiry, then natural expiry. A zero rule
// is disabled.
func evaluateExit(rules types.ExitRules, in exitInput) (types.ExitReason, bool) {
	if rules.StopLossPct.IsPositive() && in.pnlPct.LessThanOrEqual(rules.StopLossPct.Neg()) {
		return types.ExitStopLoss, true
	}
	if rules.TargetProfitPct.IsPositive() && in.pnlPct.GreaterThanOrEqual(rules.TargetProfitPct) {
		return types.ExitTargetProfit, true
	}
	if rules.TrailingStopPct.IsPositive() && in.peakPct.IsPositive() &&
		in.peakPct.Sub(in.pnlPct).GreaterThanOrEqual(rules.TrailingStopPct) {
		return types.ExitTrailingStop, true
	}
	if !in.hasOptions {
		return "", false
	}
	if rules.ExitDaysToExpiry > 0 && in.dte <= rules.ExitDaysToExpiry {
		return types.ExitDaysToExpiry, true
	}
	if in.dte <= 0 {
		return types.ExitExpiry, true
	}
	return "", false
}
