package types

import "github.com/shopspring/decimal"

type PayoffPoint struct {
	Price decimal.Decimal `json:"price"`
	PnL   decimal.Decimal `json:"pnl"`
}

// PayoffDiagram samples are strictly increasing in Price. RiskReward is nil
// when MaxLoss is zero.
type PayoffDiagram struct {
	Points     []PayoffPoint     `json:"points"`
	MaxProfit  decimal.Decimal   `json:"maxProfit"`
	MaxLoss    decimal.Decimal   `json:"maxLoss"`
	Breakevens []decimal.Decimal `json:"breakevens"`
	CurrentPnL decimal.Decimal   `json:"currentPnl"`
	RiskReward *decimal.Decimal  `json:"riskReward"`
}
