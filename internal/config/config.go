// Package config loads the YAML configuration for the backtester CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"optionlab/internal/marketdata"
	"optionlab/strategies/presets"
	"optionlab/types"
)

const dateLayout = "2006-01-02"

const (
	defaultDTETolerance       = 3
	defaultStrikeSelection    = types.StrikeATM
	defaultLogLevel           = "info"
	defaultStartPrice         = "100"
	defaultVolatility         = 0.2
	defaultStrikeStep         = "1"
	defaultStrikesPerSide     = 20
	defaultExpiryIntervalDays = 7
	defaultMaxExpiryDays      = 90
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Database  DatabaseSection  `yaml:"database"`
	Log       LogSection       `yaml:"log"`
	Backtest  BacktestSection  `yaml:"backtest"`
	Synthetic SyntheticSection `yaml:"synthetic"`
}

type DatabaseSection struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type LogSection struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type BacktestSection struct {
	Symbol           string       `yaml:"symbol"`
	StartDate        string       `yaml:"start_date"`
	EndDate          string       `yaml:"end_date"`
	InitialCapital   string       `yaml:"initial_capital"`
	Legs             []LegSection `yaml:"legs"`
	Preset           string       `yaml:"preset"`
	WingWidth        int          `yaml:"wing_width"`
	Contracts        int64        `yaml:"contracts"`
	Entry            EntrySection `yaml:"entry"`
	Exit             ExitSection  `yaml:"exit"`
	CommissionPerLeg string       `yaml:"commission_per_leg"`
	SlippagePct      string       `yaml:"slippage_pct"`
	RiskFreeRate     float64      `yaml:"risk_free_rate"`
}

type LegSection struct {
	Kind         string `yaml:"kind"`
	Action       string `yaml:"action"`
	Quantity     int64  `yaml:"quantity"`
	StrikeOffset int    `yaml:"strike_offset"`
}

type EntrySection struct {
	DaysToExpiry    int     `yaml:"days_to_expiry"`
	DTETolerance    *int    `yaml:"dte_tolerance"`
	StrikeSelection string  `yaml:"strike_selection"`
	DeltaTarget     float64 `yaml:"delta_target"`
	EntryTime       string  `yaml:"entry_time"`
	MinPremium      string  `yaml:"min_premium"`
	MaxPremium      string  `yaml:"max_premium"`
}

type ExitSection struct {
	TargetProfitPct  string `yaml:"target_profit_pct"`
	StopLossPct      string `yaml:"stop_loss_pct"`
	TrailingStopPct  string `yaml:"trailing_stop_pct"`
	ExitDaysToExpiry int    `yaml:"exit_days_to_expiry"`
}

type SyntheticSection struct {
	StartPrice         string  `yaml:"start_price"`
	DailyDriftPct      float64 `yaml:"daily_drift_pct"`
	NoisePct           float64 `yaml:"noise_pct"`
	Seed               int64   `yaml:"seed"`
	Volatility         float64 `yaml:"volatility"`
	StrikeStep         string  `yaml:"strike_step"`
	StrikesPerSide     int     `yaml:"strikes_per_side"`
	ExpiryIntervalDays int     `yaml:"expiry_interval_days"`
	MaxExpiryDays      int     `yaml:"max_expiry_days"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses a YAML document. Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if url := os.Getenv("OPTIONLAB_DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if level := os.Getenv("OPTIONLAB_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Backtest.Entry.DTETolerance == nil {
		tol := defaultDTETolerance
		cfg.Backtest.Entry.DTETolerance = &tol
	}
	if cfg.Backtest.Entry.StrikeSelection == "" {
		cfg.Backtest.Entry.StrikeSelection = string(defaultStrikeSelection)
	}

	s := &cfg.Synthetic
	if s.StartPrice == "" {
		s.StartPrice = defaultStartPrice
	}
	if s.Volatility == 0 {
		s.Volatility = defaultVolatility
	}
	if s.StrikeStep == "" {
		s.StrikeStep = defaultStrikeStep
	}
	if s.StrikesPerSide == 0 {
		s.StrikesPerSide = defaultStrikesPerSide
	}
	if s.ExpiryIntervalDays == 0 {
		s.ExpiryIntervalDays = defaultExpiryIntervalDays
	}
	if s.MaxExpiryDays == 0 {
		s.MaxExpiryDays = defaultMaxExpiryDays
	}
}

// Validate checks that every field parses. Semantic checks of the backtest
// itself are left to the engine.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.Log.Level)
	}
	if c.Backtest.Symbol != "" {
		if _, err := c.BacktestConfig(); err != nil {
			return err
		}
	}
	if _, err := parseDecimal("synthetic.start_price", c.Synthetic.StartPrice); err != nil {
		return err
	}
	if _, err := parseDecimal("synthetic.strike_step", c.Synthetic.StrikeStep); err != nil {
		return err
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// BacktestConfig converts the backtest block to the engine's config type.
func (c *Config) BacktestConfig() (types.BacktestConfig, error) {
	b := c.Backtest
	var (
		out types.BacktestConfig
		err error
	)
	out.Symbol = b.Symbol
	out.RiskFreeRate = b.RiskFreeRate
	if out.StartDate, err = parseDate("backtest.start_date", b.StartDate); err != nil {
		return out, err
	}
	if out.EndDate, err = parseDate("backtest.end_date", b.EndDate); err != nil {
		return out, err
	}
	if out.InitialCapital, err = parseDecimal("backtest.initial_capital", b.InitialCapital); err != nil {
		return out, err
	}
	if out.CommissionPerLeg, err = parseOptionalDecimal("backtest.commission_per_leg", b.CommissionPerLeg); err != nil {
		return out, err
	}
	if out.SlippagePct, err = parseOptionalDecimal("backtest.slippage_pct", b.SlippagePct); err != nil {
		return out, err
	}

	if b.Preset != "" {
		if len(b.Legs) > 0 {
			return out, fmt.Errorf("%w: backtest.preset and backtest.legs are mutually exclusive", ErrInvalid)
		}
		if out.Legs, err = presets.Legs(b.Preset, b.WingWidth, b.Contracts); err != nil {
			return out, fmt.Errorf("%w: backtest.preset: %w", ErrInvalid, err)
		}
	}
	for _, l := range b.Legs {
		out.Legs = append(out.Legs, types.LegTemplate{
			Kind:         types.InstrumentKind(l.Kind),
			Action:       types.Action(l.Action),
			Quantity:     l.Quantity,
			StrikeOffset: l.StrikeOffset,
		})
	}

	out.Entry = types.EntryRules{
		DaysToExpiry:    b.Entry.DaysToExpiry,
		StrikeSelection: types.StrikeSelection(b.Entry.StrikeSelection),
		DeltaTarget:     b.Entry.DeltaTarget,
		EntryTime:       b.Entry.EntryTime,
	}
	if b.Entry.DTETolerance != nil {
		out.Entry.DTETolerance = *b.Entry.DTETolerance
	}
	if out.Entry.MinPremium, err = parseOptionalDecimal("backtest.entry.min_premium", b.Entry.MinPremium); err != nil {
		return out, err
	}
	if out.Entry.MaxPremium, err = parseOptionalDecimal("backtest.entry.max_premium", b.Entry.MaxPremium); err != nil {
		return out, err
	}

	out.Exit.ExitDaysToExpiry = b.Exit.ExitDaysToExpiry
	if out.Exit.TargetProfitPct, err = parseOptionalDecimal("backtest.exit.target_profit_pct", b.Exit.TargetProfitPct); err != nil {
		return out, err
	}
	if out.Exit.StopLossPct, err = parseOptionalDecimal("backtest.exit.stop_loss_pct", b.Exit.StopLossPct); err != nil {
		return out, err
	}
	if out.Exit.TrailingStopPct, err = parseOptionalDecimal("backtest.exit.trailing_stop_pct", b.Exit.TrailingStopPct); err != nil {
		return out, err
	}
	return out, nil
}

// SyntheticConfig builds a generator config anchored at the backtest start.
func (c *Config) SyntheticConfig(symbol string, anchor time.Time, riskFreeRate float64) (marketdata.SyntheticConfig, error) {
	s := c.Synthetic
	start, err := parseDecimal("synthetic.start_price", s.StartPrice)
	if err != nil {
		return marketdata.SyntheticConfig{}, err
	}
	step, err := parseDecimal("synthetic.strike_step", s.StrikeStep)
	if err != nil {
		return marketdata.SyntheticConfig{}, err
	}
	return marketdata.SyntheticConfig{
		Symbol:             symbol,
		Anchor:             anchor,
		StartPrice:         start,
		DailyDriftPct:      s.DailyDriftPct,
		NoisePct:           s.NoisePct,
		Seed:               s.Seed,
		Volatility:         s.Volatility,
		RiskFreeRate:       riskFreeRate,
		StrikeStep:         step,
		StrikesPerSide:     s.StrikesPerSide,
		ExpiryIntervalDays: s.ExpiryIntervalDays,
		MaxExpiryDays:      s.MaxExpiryDays,
	}, nil
}

// Save writes cfg back as YAML.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not YYYY-MM-DD", ErrInvalid, field, s)
	}
	return t, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a number", ErrInvalid, field, s)
	}
	return d, nil
}

func parseOptionalDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(field, s)
}
