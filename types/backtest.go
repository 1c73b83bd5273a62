package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type StrikeSelection string

const (
	StrikeATM   StrikeSelection = "atm"
	StrikeOTM   StrikeSelection = "otm"
	StrikeITM   StrikeSelection = "itm"
	StrikeDelta StrikeSelection = "delta"
)

// LegTemplate describes a leg before strikes and expiry are known.
// StrikeOffset shifts the selected strike by that many strike steps.
type LegTemplate struct {
	Kind         InstrumentKind `json:"kind"`
	Action       Action         `json:"action"`
	Quantity     int64          `json:"quantity"`
	StrikeOffset int            `json:"strikeOffset"`
}

type EntryRules struct {
	DaysToExpiry    int             `json:"daysToExpiry"`
	DTETolerance    int             `json:"dteTolerance"`
	StrikeSelection StrikeSelection `json:"strikeSelection"`
	DeltaTarget     float64         `json:"deltaTarget"`
	EntryTime       string          `json:"entryTime"`
	MinPremium      decimal.Decimal `json:"minPremium"`
	MaxPremium      decimal.Decimal `json:"maxPremium"`
}

// ExitRules percentages are in percent units. Zero disables a rule.
type ExitRules struct {
	TargetProfitPct  decimal.Decimal `json:"targetProfitPct"`
	StopLossPct      decimal.Decimal `json:"stopLossPct"`
	TrailingStopPct  decimal.Decimal `json:"trailingStopPct"`
	ExitDaysToExpiry int             `json:"exitDaysToExpiry"`
}

type BacktestConfig struct {
	Symbol           string          `json:"symbol"`
	StartDate        time.Time       `json:"startDate"`
	EndDate          time.Time       `json:"endDate"`
	InitialCapital   decimal.Decimal `json:"initialCapital"`
	Legs             []LegTemplate   `json:"legs"`
	Entry            EntryRules      `json:"entry"`
	Exit             ExitRules       `json:"exit"`
	CommissionPerLeg decimal.Decimal `json:"commissionPerLeg"`
	SlippagePct      decimal.Decimal `json:"slippagePct"`
	RiskFreeRate     float64         `json:"riskFreeRate"`
}

type BacktestStatus string

const (
	StatusPending   BacktestStatus = "pending"
	StatusRunning   BacktestStatus = "running"
	StatusCompleted BacktestStatus = "completed"
	StatusFailed    BacktestStatus = "failed"
)

func (s BacktestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type ExitReason string

const (
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTargetProfit ExitReason = "target_profit"
	ExitTrailingStop ExitReason = "trailing_stop"
	ExitDaysToExpiry ExitReason = "days_to_expiry"
	ExitExpiry       ExitReason = "expiry"
	ExitEndOfData    ExitReason = "end_of_data"
)

// BacktestedTrade is one realized round trip. EntryValue and ExitValue are
// the signed position values (positive for a net debit). GrossPnL includes
// slippage but not commissions; PnL is net of both.
type BacktestedTrade struct {
	EntryDate   time.Time       `json:"entryDate"`
	ExitDate    time.Time       `json:"exitDate"`
	EntryValue  decimal.Decimal `json:"entryValue"`
	ExitValue   decimal.Decimal `json:"exitValue"`
	Quantity    int64           `json:"quantity"`
	GrossPnL    decimal.Decimal `json:"grossPnl"`
	Commission  decimal.Decimal `json:"commission"`
	PnL         decimal.Decimal `json:"pnl"`
	PnLPct      decimal.Decimal `json:"pnlPct"`
	HoldingDays int             `json:"holdingDays"`
	ExitReason  ExitReason      `json:"exitReason"`
	Legs        []Leg           `json:"legs"`
	EntryGreeks PortfolioGreeks `json:"entryGreeks"`
}

type EquityPoint struct {
	Date   time.Time       `json:"date"`
	Equity decimal.Decimal `json:"equity"`
}

type MonthlyReturn struct {
	Year      int             `json:"year"`
	Month     time.Month      `json:"month"`
	PnL       decimal.Decimal `json:"pnl"`
	ReturnPct decimal.Decimal `json:"returnPct"`
}

// BacktestResult is finalized exactly once, to completed or failed. Summary
// statistics are only populated for completed runs. ProfitFactor is nil when
// there were no losing trades.
type BacktestResult struct {
	ID     string         `json:"id"`
	Symbol string         `json:"symbol"`
	Status BacktestStatus `json:"status"`
	Error  string         `json:"error,omitempty"`

	TotalTrades   int             `json:"totalTrades"`
	WinningTrades int             `json:"winningTrades"`
	LosingTrades  int             `json:"losingTrades"`
	WinRate       decimal.Decimal `json:"winRate"`

	TotalPnL     decimal.Decimal  `json:"totalPnl"`
	AvgWin       decimal.Decimal  `json:"avgWin"`
	AvgLoss      decimal.Decimal  `json:"avgLoss"`
	LargestWin   decimal.Decimal  `json:"largestWin"`
	LargestLoss  decimal.Decimal  `json:"largestLoss"`
	ProfitFactor *decimal.Decimal `json:"profitFactor"`
	SharpeRatio  decimal.Decimal  `json:"sharpeRatio"`

	MaxDrawdown        decimal.Decimal `json:"maxDrawdown"`
	MaxDrawdownPercent decimal.Decimal `json:"maxDrawdownPercent"`

	AvgHoldingDays   decimal.Decimal `json:"avgHoldingDays"`
	TotalCommissions decimal.Decimal `json:"totalCommissions"`
	InitialCapital   decimal.Decimal `json:"initialCapital"`
	FinalCapital     decimal.Decimal `json:"finalCapital"`
	ReturnPct        decimal.Decimal `json:"returnPct"`

	EquityCurve    []EquityPoint           `json:"equityCurve"`
	Trades         []BacktestedTrade       `json:"trades"`
	MonthlyReturns []MonthlyReturn         `json:"monthlyReturns"`
	Classification *StrategyClassification `json:"classification,omitempty"`

	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}
