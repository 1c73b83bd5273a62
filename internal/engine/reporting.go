package engine

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"optionlab/types"
)

const tradingDaysPerYear = 252

type tradeStats struct {
	total, wins, losses int
	winRate             decimal.Decimal
	totalPnL            decimal.Decimal
	commissions         decimal.Decimal
	avgWin, avgLoss     decimal.Decimal
	largestWin          decimal.Decimal
	largestLoss         decimal.Decimal
	profitFactor        *decimal.Decimal
	avgHoldingDays      decimal.Decimal
}

// summarize fills the aggregate statistics of a finished run from its trades
// and equity curve.
func summarize(result *types.BacktestResult, riskFreeRate float64) {
	initial := result.InitialCapital

	var (
		stats    tradeStats
		maxDD    decimal.Decimal
		maxDDPct decimal.Decimal
		sharpe   decimal.Decimal
		monthly  []types.MonthlyReturn
		wg       sync.WaitGroup
	)
	wg.Add(4)
	go func() {
		stats = calcTradeStats(result.Trades, &wg)
	}()
	go func() {
		maxDD, maxDDPct = calcDrawdownMetrics(initial, result.EquityCurve, &wg)
	}()
	go func() {
		sharpe = calcSharpeRatio(initial, result.EquityCurve, riskFreeRate, &wg)
	}()
	go func() {
		monthly = calcMonthlyReturns(initial, result.EquityCurve, &wg)
	}()
	wg.Wait()

	result.TotalTrades = stats.total
	result.WinningTrades = stats.wins
	result.LosingTrades = stats.losses
	result.WinRate = stats.winRate
	result.TotalPnL = stats.totalPnL
	result.AvgWin = stats.avgWin
	result.AvgLoss = stats.avgLoss
	result.LargestWin = stats.largestWin
	result.LargestLoss = stats.largestLoss
	result.ProfitFactor = stats.profitFactor
	result.AvgHoldingDays = stats.avgHoldingDays
	result.TotalCommissions = stats.commissions
	result.SharpeRatio = sharpe
	result.MaxDrawdown = maxDD
	result.MaxDrawdownPercent = maxDDPct
	result.MonthlyReturns = monthly

	result.FinalCapital = initial.Add(stats.totalPnL).Sub(stats.commissions)
	result.ReturnPct = result.FinalCapital.Sub(initial).Div(initial).Mul(hundred)
}

// calcTradeStats classifies trades as wins or losses on net P/L. TotalPnL is
// gross so that commissions are only counted once in final capital.
func calcTradeStats(trades []types.BacktestedTrade, wg *sync.WaitGroup) tradeStats {
	defer wg.Done()

	s := tradeStats{
		total:          len(trades),
		winRate:        decimal.Zero,
		totalPnL:       decimal.Zero,
		commissions:    decimal.Zero,
		avgWin:         decimal.Zero,
		avgLoss:        decimal.Zero,
		largestWin:     decimal.Zero,
		largestLoss:    decimal.Zero,
		avgHoldingDays: decimal.Zero,
	}
	if len(trades) == 0 {
		return s
	}

	sumWins := decimal.Zero
	sumLosses := decimal.Zero // absolute
	holding := 0
	for _, tr := range trades {
		s.totalPnL = s.totalPnL.Add(tr.GrossPnL)
		s.commissions = s.commissions.Add(tr.Commission)
		holding += tr.HoldingDays

		switch {
		case tr.PnL.IsPositive():
			s.wins++
			sumWins = sumWins.Add(tr.PnL)
			if tr.PnL.GreaterThan(s.largestWin) {
				s.largestWin = tr.PnL
			}
		case tr.PnL.IsNegative():
			s.losses++
			loss := tr.PnL.Abs()
			sumLosses = sumLosses.Add(loss)
			if loss.GreaterThan(s.largestLoss) {
				s.largestLoss = loss
			}
		}
	}

	n := decimal.NewFromInt(int64(len(trades)))
	s.winRate = decimal.NewFromInt(int64(s.wins)).Div(n)
	s.avgHoldingDays = decimal.NewFromInt(int64(holding)).Div(n)
	if s.wins > 0 {
		s.avgWin = sumWins.Div(decimal.NewFromInt(int64(s.wins)))
	}
	if s.losses > 0 {
		s.avgLoss = sumLosses.Div(decimal.NewFromInt(int64(s.losses)))
		pf := sumWins.Div(sumLosses)
		s.profitFactor = &pf
	}
	return s
}

// calcDrawdownMetrics returns the largest peak-to-trough equity decline and
// that decline as a percentage of its peak. Initial capital seeds the peak.
func calcDrawdownMetrics(initial decimal.Decimal, curve []types.EquityPoint, wg *sync.WaitGroup) (decimal.Decimal, decimal.Decimal) {
	defer wg.Done()

	peak := initial
	maxDD := decimal.Zero
	maxDDPct := decimal.Zero
	for _, p := range curve {
		if p.Equity.GreaterThan(peak) {
			peak = p.Equity
		}
		if !peak.IsPositive() {
			continue
		}
		if dd := peak.Sub(p.Equity); dd.GreaterThan(maxDD) {
			maxDD = dd
			maxDDPct = dd.Div(peak).Mul(hundred)
		}
	}
	return maxDD, maxDDPct
}

// calcSharpeRatio annualizes the mean daily excess return over its sample
// standard deviation by sqrt(252).
func calcSharpeRatio(initial decimal.Decimal, curve []types.EquityPoint, annualRiskFree float64, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()

	returns := dailyReturns(initial, curve)
	if len(returns) < 2 {
		return decimal.Zero
	}

	rfDaily := annualRiskFree / tradingDaysPerYear
	var sum float64
	for i := range returns {
		returns[i] -= rfDaily
		sum += returns[i]
	}
	mean := sum / float64(len(returns))

	var varianceSum float64
	for _, x := range returns {
		diff := x - mean
		varianceSum += diff * diff
	}
	std := math.Sqrt(varianceSum / float64(len(returns)-1))
	if std == 0 || math.IsNaN(std) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(mean / std * math.Sqrt(tradingDaysPerYear)).Round(6)
}

func dailyReturns(initial decimal.Decimal, curve []types.EquityPoint) []float64 {
	out := make([]float64, 0, len(curve))
	prev := initial
	for _, p := range curve {
		if prev.IsPositive() {
			out = append(out, p.Equity.Div(prev).Sub(decimal.NewFromInt(1)).InexactFloat64())
		}
		prev = p.Equity
	}
	return out
}

// calcMonthlyReturns reports the month-end equity change for each calendar
// month of the curve. The first month is measured from initial capital.
func calcMonthlyReturns(initial decimal.Decimal, curve []types.EquityPoint, wg *sync.WaitGroup) []types.MonthlyReturn {
	defer wg.Done()

	var out []types.MonthlyReturn
	prev := initial
	for i, p := range curve {
		y, m, _ := p.Date.Date()
		if i+1 < len(curve) {
			ny, nm, _ := curve[i+1].Date.Date()
			if ny == y && nm == m {
				continue
			}
		}
		pnl := p.Equity.Sub(prev)
		pct := decimal.Zero
		if prev.IsPositive() {
			pct = pnl.Div(prev).Mul(hundred)
		}
		out = append(out, types.MonthlyReturn{Year: y, Month: m, PnL: pnl, ReturnPct: pct})
		prev = p.Equity
	}
	return out
}

// WriteSummary prints a plain-text report of a finished run.
func WriteSummary(w io.Writer, r *types.BacktestResult) error {
	pf := "n/a"
	if r.ProfitFactor != nil {
		pf = r.ProfitFactor.StringFixed(2)
	}
	strategy := types.StrategyNone
	if r.Classification != nil {
		strategy = r.Classification.Name
	}

	lines := []string{
		"===== Backtest Report =====",
		fmt.Sprintf("ID:                    %s", r.ID),
		fmt.Sprintf("Symbol:                %s", r.Symbol),
		fmt.Sprintf("Strategy:              %s", strategy),
		fmt.Sprintf("Status:                %s", r.Status),
	}
	if r.Error != "" {
		lines = append(lines, fmt.Sprintf("Error:                 %s", r.Error))
	}
	if len(r.EquityCurve) > 0 {
		first, last := r.EquityCurve[0].Date, r.EquityCurve[len(r.EquityCurve)-1].Date
		lines = append(lines, fmt.Sprintf("Period:                %s to %s", first.Format(time.DateOnly), last.Format(time.DateOnly)))
	}
	lines = append(lines,
		"",
		"-- Trades --",
		fmt.Sprintf("Total Trades:          %d", r.TotalTrades),
		fmt.Sprintf("Winning / Losing:      %d / %d", r.WinningTrades, r.LosingTrades),
		fmt.Sprintf("Win Rate:              %s%%", r.WinRate.Mul(hundred).StringFixed(2)),
		fmt.Sprintf("Avg Win:               %s", r.AvgWin.StringFixed(2)),
		fmt.Sprintf("Avg Loss:              %s", r.AvgLoss.StringFixed(2)),
		fmt.Sprintf("Largest Win:           %s", r.LargestWin.StringFixed(2)),
		fmt.Sprintf("Largest Loss:          %s", r.LargestLoss.StringFixed(2)),
		fmt.Sprintf("Avg Holding Days:      %s", r.AvgHoldingDays.StringFixed(1)),
		"",
		"-- Performance --",
		fmt.Sprintf("Initial Capital:       %s", r.InitialCapital.StringFixed(2)),
		fmt.Sprintf("Final Capital:         %s", r.FinalCapital.StringFixed(2)),
		fmt.Sprintf("Total P/L (gross):     %s", r.TotalPnL.StringFixed(2)),
		fmt.Sprintf("Total Commissions:     %s", r.TotalCommissions.StringFixed(2)),
		fmt.Sprintf("Return:                %s%%", r.ReturnPct.StringFixed(2)),
		fmt.Sprintf("Profit Factor:         %s", pf),
		fmt.Sprintf("Sharpe Ratio:          %s", r.SharpeRatio.StringFixed(2)),
		fmt.Sprintf("Max Drawdown:          %s (%s%%)", r.MaxDrawdown.StringFixed(2), r.MaxDrawdownPercent.StringFixed(2)),
	)
	if len(r.MonthlyReturns) > 0 {
		lines = append(lines, "", "-- Monthly Returns --")
		for _, m := range r.MonthlyReturns {
			lines = append(lines, fmt.Sprintf("%d-%02d:               %10s  %7s%%", m.Year, int(m.Month), m.PnL.StringFixed(2), m.ReturnPct.StringFixed(2)))
		}
	}
	lines = append(lines, "===========================")

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
