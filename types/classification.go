package types

type StrategyCategory string

const (
	CategoryBullish  StrategyCategory = "bullish"
	CategoryBearish  StrategyCategory = "bearish"
	CategoryNeutral  StrategyCategory = "neutral"
	CategoryVolatile StrategyCategory = "volatile"
)

type RiskProfile string

const (
	RiskDefined   RiskProfile = "defined"
	RiskUndefined RiskProfile = "undefined"
)

const (
	StrategyCustom = "custom"
	StrategyNone   = "none"
)

type StrategyClassification struct {
	Name       string           `json:"name"`
	Category   StrategyCategory `json:"category"`
	Risk       RiskProfile      `json:"risk"`
	Confidence int              `json:"confidence"`
	Legs       []Leg            `json:"legs"`
}
