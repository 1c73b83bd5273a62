package engine

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"optionlab/internal/marketdata"
	"optionlab/types"
)

var day0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // Monday

func quote(expiry time.Time, kind types.InstrumentKind, strike, premium string) types.OptionQuote {
	return types.OptionQuote{Expiry: expiry, Strike: dec(strike), Kind: kind, Premium: dec(premium), ImpliedVol: 0.2}
}

func chain(day time.Time, spot string, quotes ...types.OptionQuote) *types.ChainSnapshot {
	return &types.ChainSnapshot{Symbol: "SPY", Date: day, Spot: dec(spot), Quotes: quotes}
}

// callChain lists strikes 95, 100 and 105 with only the 100 call priced at
// premium.
func callChain(day, expiry time.Time, spot, premium string) *types.ChainSnapshot {
	return chain(day, spot,
		quote(expiry, types.KindCall, "95", "9"),
		quote(expiry, types.KindCall, "100", premium),
		quote(expiry, types.KindCall, "105", "0.5"),
	)
}

func longCallConfig() types.BacktestConfig {
	return types.BacktestConfig{
		Symbol:         "SPY",
		StartDate:      day0,
		EndDate:        day0.AddDate(0, 1, 0),
		InitialCapital: dec("1000"),
		Legs:           []types.LegTemplate{{Kind: types.KindCall, Action: types.ActionBuy, Quantity: 1}},
		Entry: types.EntryRules{
			DaysToExpiry:    30,
			DTETolerance:    3,
			StrikeSelection: types.StrikeATM,
		},
		Exit: types.ExitRules{
			TargetProfitPct: dec("50"),
			StopLossPct:     dec("50"),
		},
		CommissionPerLeg: dec("1"),
		SlippagePct:      decimal.Zero,
	}
}

func assertDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func assertCapitalInvariant(t *testing.T, r *types.BacktestResult) {
	t.Helper()
	want := r.InitialCapital.Add(r.TotalPnL).Sub(r.TotalCommissions)
	if !r.FinalCapital.Equal(want) {
		t.Errorf("final capital %s != initial + pnl - commissions = %s", r.FinalCapital, want)
	}
	if r.WinningTrades+r.LosingTrades > r.TotalTrades {
		t.Errorf("wins %d + losses %d > trades %d", r.WinningTrades, r.LosingTrades, r.TotalTrades)
	}
	for i, tr := range r.Trades {
		if tr.ExitDate.Before(tr.EntryDate) {
			t.Errorf("trade %d exits %v before entry %v", i, tr.ExitDate, tr.EntryDate)
		}
		if i > 0 && tr.EntryDate.Before(r.Trades[i-1].ExitDate) {
			t.Errorf("trade %d overlaps trade %d", i, i-1)
		}
	}
	if n := len(r.EquityCurve); n > 0 && !r.EquityCurve[n-1].Equity.Equal(r.FinalCapital) {
		t.Errorf("last equity point %s != final capital %s", r.EquityCurve[n-1].Equity, r.FinalCapital)
	}
}

func TestRunBacktest_TargetProfit(t *testing.T) {
	expiry := day0.AddDate(0, 0, 30)
	data := marketdata.NewMemory(
		callChain(day0, expiry, "100", "5"),
		callChain(day0.AddDate(0, 0, 1), expiry, "101", "6"),
		callChain(day0.AddDate(0, 0, 2), expiry, "103", "8"),
	)

	res, err := RunBacktest(context.Background(), longCallConfig(), data)
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if res.Status != types.StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", res.Status, res.Error)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}

	tr := res.Trades[0]
	if tr.ExitReason != types.ExitTargetProfit {
		t.Errorf("exit reason = %s, want %s", tr.ExitReason, types.ExitTargetProfit)
	}
	if tr.HoldingDays != 2 || tr.Quantity != 1 {
		t.Errorf("holding days %d quantity %d, want 2 and 1", tr.HoldingDays, tr.Quantity)
	}
	assertDec(t, "entry value", tr.EntryValue, "5")
	assertDec(t, "exit value", tr.ExitValue, "8")
	assertDec(t, "gross pnl", tr.GrossPnL, "3")
	assertDec(t, "commission", tr.Commission, "2")
	assertDec(t, "net pnl", tr.PnL, "1")
	assertDec(t, "pnl pct", tr.PnLPct, "20")
	if tr.EntryGreeks.Delta <= 0 || tr.EntryGreeks.Delta >= 1 {
		t.Errorf("entry delta = %v, want in (0, 1)", tr.EntryGreeks.Delta)
	}
	if tr.Legs[0].ExitPrice == nil || !tr.Legs[0].ExitPrice.Equal(dec("8")) {
		t.Errorf("leg exit price = %v, want 8", tr.Legs[0].ExitPrice)
	}

	assertDec(t, "total pnl", res.TotalPnL, "3")
	assertDec(t, "total commissions", res.TotalCommissions, "2")
	assertDec(t, "final capital", res.FinalCapital, "1001")
	assertDec(t, "return pct", res.ReturnPct, "0.1")
	assertDec(t, "win rate", res.WinRate, "1")
	assertDec(t, "max drawdown", res.MaxDrawdown, "1")
	assertDec(t, "max drawdown pct", res.MaxDrawdownPercent, "0.1")
	if res.ProfitFactor != nil {
		t.Errorf("profit factor = %s, want nil without losses", res.ProfitFactor)
	}
	if res.Classification == nil || res.Classification.Name != "long_call" {
		t.Errorf("classification = %+v, want long_call", res.Classification)
	}

	wantCurve := []string{"999", "1000", "1001"}
	if len(res.EquityCurve) != len(wantCurve) {
		t.Fatalf("equity curve len = %d, want %d", len(res.EquityCurve), len(wantCurve))
	}
	for i, w := range wantCurve {
		assertDec(t, "equity", res.EquityCurve[i].Equity, w)
	}
	if len(res.MonthlyReturns) != 1 || res.MonthlyReturns[0].Month != time.March {
		t.Fatalf("monthly returns = %+v, want one March entry", res.MonthlyReturns)
	}
	assertDec(t, "march pnl", res.MonthlyReturns[0].PnL, "1")
	assertCapitalInvariant(t, res)
}

func TestRunBacktest_SlippageAndEndOfData(t *testing.T) {
	expiry := day0.AddDate(0, 0, 30)
	data := marketdata.NewMemory(
		callChain(day0, expiry, "100", "5"),
		callChain(day0.AddDate(0, 0, 1), expiry, "101", "6"),
		callChain(day0.AddDate(0, 0, 2), expiry, "103", "8"),
	)
	cfg := longCallConfig()
	cfg.Exit = types.ExitRules{}
	cfg.CommissionPerLeg = decimal.Zero
	cfg.SlippagePct = dec("10")

	res, err := RunBacktest(context.Background(), cfg, data)
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.ExitReason != types.ExitEndOfData {
		t.Errorf("exit reason = %s, want %s", tr.ExitReason, types.ExitEndOfData)
	}
	if !tr.ExitDate.Equal(day0.AddDate(0, 0, 2)) {
		t.Errorf("exit date = %v, want last day", tr.ExitDate)
	}
	// Bought at 5 * 1.1, sold at 8 * 0.9.
	assertDec(t, "entry value", tr.EntryValue, "5.5")
	assertDec(t, "exit value", tr.ExitValue, "7.2")
	assertDec(t, "pnl", tr.PnL, "1.7")
	assertCapitalInvariant(t, res)
}

func TestRunBacktest_ShortPutSettlesAtExpiry(t *testing.T) {
	expiry := day0.AddDate(0, 0, 2)
	data := marketdata.NewMemory(
		chain(day0, "100", quote(expiry, types.KindPut, "100", "1.5"), quote(expiry, types.KindPut, "95", "0.2")),
		chain(day0.AddDate(0, 0, 1), "101", quote(expiry, types.KindPut, "100", "0.8"), quote(expiry, types.KindPut, "95", "0.1")),
		// Expiration day has no quotes for the expired contract.
		chain(expiry, "97"),
	)
	cfg := longCallConfig()
	cfg.Legs = []types.LegTemplate{{Kind: types.KindPut, Action: types.ActionSell, Quantity: 2}}
	cfg.Entry.DaysToExpiry = 2
	cfg.Entry.DTETolerance = 0
	cfg.Exit = types.ExitRules{}
	cfg.CommissionPerLeg = decimal.Zero

	res, err := RunBacktest(context.Background(), cfg, data)
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if res.Status != types.StatusCompleted || len(res.Trades) != 1 {
		t.Fatalf("status %s trades %d (%s)", res.Status, len(res.Trades), res.Error)
	}
	tr := res.Trades[0]
	if tr.ExitReason != types.ExitExpiry {
		t.Errorf("exit reason = %s, want %s", tr.ExitReason, types.ExitExpiry)
	}
	assertDec(t, "entry value", tr.EntryValue, "-3")
	assertDec(t, "exit value", tr.ExitValue, "-6")
	assertDec(t, "pnl", tr.PnL, "-3")
	assertDec(t, "largest loss", res.LargestLoss, "3")
	if res.LosingTrades != 1 || res.ProfitFactor == nil || !res.ProfitFactor.IsZero() {
		t.Errorf("losing trades %d profit factor %v, want 1 and 0", res.LosingTrades, res.ProfitFactor)
	}
	if res.Classification == nil || res.Classification.Risk != types.RiskUndefined {
		t.Errorf("classification = %+v, want undefined risk", res.Classification)
	}
	assertCapitalInvariant(t, res)
}

func TestRunBacktest_SkipsEntryWithoutMatchingChain(t *testing.T) {
	data := marketdata.NewMemory(
		callChain(day0, day0.AddDate(0, 0, 60), "100", "5"),
		callChain(day0.AddDate(0, 0, 1), day0.AddDate(0, 0, 60), "100", "5"),
	)
	res, err := RunBacktest(context.Background(), longCallConfig(), data)
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if res.Status != types.StatusCompleted || res.TotalTrades != 0 {
		t.Errorf("status %s trades %d, want completed with no trades", res.Status, res.TotalTrades)
	}
	assertDec(t, "final capital", res.FinalCapital, "1000")
	if res.Classification != nil {
		t.Errorf("classification = %+v, want nil without entries", res.Classification)
	}
}

func TestRunBacktest_PremiumBoundsAndCapital(t *testing.T) {
	expiry := day0.AddDate(0, 0, 30)
	data := marketdata.NewMemory(callChain(day0, expiry, "100", "5"))

	tests := []struct {
		name   string
		modify func(*types.BacktestConfig)
	}{
		{"below min premium", func(c *types.BacktestConfig) { c.Entry.MinPremium = dec("6") }},
		{"above max premium", func(c *types.BacktestConfig) { c.Entry.MaxPremium = dec("4") }},
		{"insufficient capital", func(c *types.BacktestConfig) { c.InitialCapital = dec("5.5") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := longCallConfig()
			tt.modify(&cfg)
			res, err := RunBacktest(context.Background(), cfg, data)
			if err != nil {
				t.Fatalf("RunBacktest: %v", err)
			}
			if res.TotalTrades != 0 {
				t.Errorf("trades = %d, want 0", res.TotalTrades)
			}
		})
	}
}

// gappySource reports a trading day it has no snapshot for.
type gappySource struct {
	*marketdata.Memory
	extra time.Time
}

func (g gappySource) TradingDays(ctx context.Context, symbol string, start, end time.Time) ([]time.Time, error) {
	days, err := g.Memory.TradingDays(ctx, symbol, start, end)
	return append(days, g.extra), err
}

func TestRunBacktest_Failures(t *testing.T) {
	expiry := day0.AddDate(0, 0, 30)
	full := marketdata.NewMemory(
		callChain(day0, expiry, "100", "5"),
		callChain(day0.AddDate(0, 0, 1), expiry, "101", "6"),
	)
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		ctx       context.Context
		data      MarketDataSource
		wantErr   string
		wantTrade bool
	}{
		{
			name:    "no trading days",
			ctx:     context.Background(),
			data:    marketdata.NewMemory(),
			wantErr: "no trading days",
		},
		{
			name:      "missing snapshot",
			ctx:       context.Background(),
			data:      gappySource{Memory: full, extra: day0.AddDate(0, 0, 2)},
			wantErr:   marketdata.ErrNoSnapshot.Error(),
			wantTrade: false,
		},
		{
			name: "missing quote for open leg",
			ctx:  context.Background(),
			data: marketdata.NewMemory(
				callChain(day0, expiry, "100", "5"),
				chain(day0.AddDate(0, 0, 1), "101", quote(expiry, types.KindCall, "105", "1")),
			),
			wantErr: ErrQuoteMissing.Error(),
		},
		{
			name:    "malformed snapshot",
			ctx:     context.Background(),
			data:    marketdata.NewMemory(chain(day0, "0")),
			wantErr: types.ErrMalformedSnapshot.Error(),
		},
		{
			name:    "cancelled",
			ctx:     cancelled,
			data:    full,
			wantErr: context.Canceled.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := RunBacktest(tt.ctx, longCallConfig(), tt.data)
			if err != nil {
				t.Fatalf("RunBacktest returned error %v, want failed result", err)
			}
			if res.Status != types.StatusFailed {
				t.Fatalf("status = %s, want failed", res.Status)
			}
			if !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", res.Error, tt.wantErr)
			}
			if !res.FinalCapital.IsZero() || res.TotalTrades != 0 {
				t.Errorf("failed run has statistics: final %s trades %d", res.FinalCapital, res.TotalTrades)
			}
		})
	}
}

func TestRunBacktest_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*types.BacktestConfig)
	}{
		{"no symbol", func(c *types.BacktestConfig) { c.Symbol = "" }},
		{"end before start", func(c *types.BacktestConfig) { c.EndDate = c.StartDate.AddDate(0, 0, -1) }},
		{"no capital", func(c *types.BacktestConfig) { c.InitialCapital = decimal.Zero }},
		{"no legs", func(c *types.BacktestConfig) { c.Legs = nil }},
		{"zero quantity", func(c *types.BacktestConfig) { c.Legs[0].Quantity = 0 }},
		{"unknown kind", func(c *types.BacktestConfig) { c.Legs[0].Kind = "swap" }},
		{"zero dte", func(c *types.BacktestConfig) { c.Entry.DaysToExpiry = 0 }},
		{"bad delta", func(c *types.BacktestConfig) {
			c.Entry.StrikeSelection = types.StrikeDelta
			c.Entry.DeltaTarget = 1.5
		}},
		{"bad entry time", func(c *types.BacktestConfig) { c.Entry.EntryTime = "9am" }},
		{"inverted premium bounds", func(c *types.BacktestConfig) {
			c.Entry.MinPremium = dec("5")
			c.Entry.MaxPremium = dec("1")
		}},
		{"negative stop", func(c *types.BacktestConfig) { c.Exit.StopLossPct = dec("-1") }},
		{"negative commission", func(c *types.BacktestConfig) { c.CommissionPerLeg = dec("-1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := longCallConfig()
			tt.modify(&cfg)
			res, err := RunBacktest(context.Background(), cfg, marketdata.NewMemory())
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
		})
	}
}

func risingSource(t *testing.T) *marketdata.Synthetic {
	t.Helper()
	src, err := marketdata.NewSynthetic(marketdata.SyntheticConfig{
		Symbol:             "SPY",
		Anchor:             day0,
		StartPrice:         dec("100"),
		DailyDriftPct:      0.5,
		Volatility:         0.2,
		RiskFreeRate:       0.01,
		StrikeStep:         dec("1"),
		StrikesPerSide:     25,
		ExpiryIntervalDays: 7,
		MaxExpiryDays:      90,
	})
	if err != nil {
		t.Fatalf("NewSynthetic: %v", err)
	}
	return src
}

func risingConfig() types.BacktestConfig {
	cfg := longCallConfig()
	cfg.EndDate = day0.AddDate(0, 3, 0)
	cfg.InitialCapital = dec("10000")
	cfg.CommissionPerLeg = decimal.Zero
	cfg.RiskFreeRate = 0.01
	return cfg
}

func TestRunBacktest_RisingMarketLongCall(t *testing.T) {
	res, err := RunBacktest(context.Background(), risingConfig(), risingSource(t))
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if res.Status != types.StatusCompleted {
		t.Fatalf("status = %s (%s)", res.Status, res.Error)
	}
	if res.TotalTrades < 2 {
		t.Fatalf("trades = %d, want several", res.TotalTrades)
	}
	for i, tr := range res.Trades {
		switch tr.ExitReason {
		case types.ExitTargetProfit:
			if !tr.PnL.IsPositive() {
				t.Errorf("trade %d hit target with pnl %s", i, tr.PnL)
			}
		case types.ExitEndOfData:
			if i != len(res.Trades)-1 || tr.PnL.IsNegative() {
				t.Errorf("trade %d end of data with pnl %s", i, tr.PnL)
			}
		default:
			t.Errorf("trade %d exit reason = %s", i, tr.ExitReason)
		}
	}
	if res.LosingTrades != 0 {
		t.Errorf("losing trades = %d, want 0", res.LosingTrades)
	}
	if !res.FinalCapital.GreaterThan(res.InitialCapital) {
		t.Errorf("final capital %s not above initial", res.FinalCapital)
	}
	if res.SharpeRatio.IsZero() {
		t.Errorf("sharpe ratio is zero")
	}
	if len(res.MonthlyReturns) < 3 {
		t.Errorf("monthly returns = %d, want at least 3", len(res.MonthlyReturns))
	}
	assertCapitalInvariant(t, res)
}

func TestRunBacktest_Deterministic(t *testing.T) {
	cfg := risingConfig()
	cfg.Legs = []types.LegTemplate{
		{Kind: types.KindPut, Action: types.ActionBuy, Quantity: 1, StrikeOffset: -2},
		{Kind: types.KindPut, Action: types.ActionSell, Quantity: 1},
		{Kind: types.KindCall, Action: types.ActionSell, Quantity: 1},
		{Kind: types.KindCall, Action: types.ActionBuy, Quantity: 1, StrikeOffset: 2},
	}
	cfg.Exit = types.ExitRules{TargetProfitPct: dec("25"), StopLossPct: dec("60"), ExitDaysToExpiry: 7}
	cfg.CommissionPerLeg = dec("0.65")
	cfg.SlippagePct = dec("1")

	var days []time.Time
	first, err := RunBacktest(context.Background(), cfg, risingSource(t), WithDayHook(func(d time.Time) { days = append(days, d) }))
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	second, err := RunBacktest(context.Background(), cfg, risingSource(t))
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("two runs over the same data differ")
	}
	if len(days) != len(first.EquityCurve) {
		t.Errorf("day hook called %d times, equity curve has %d points", len(days), len(first.EquityCurve))
	}
	if first.Classification == nil || first.Classification.Name != "iron_butterfly" {
		t.Errorf("classification = %+v, want iron_butterfly", first.Classification)
	}
	assertCapitalInvariant(t, first)
}
