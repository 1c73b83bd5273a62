package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"optionlab/internal/options"
	"optionlab/types"
)

func payoffCmd() *cobra.Command {
	var (
		legsPath string
		spot     string
		low      string
		high     string
		step     string
		at       string
		vol      float64
		rate     float64
		rows     int
	)
	cmd := &cobra.Command{
		Use:   "payoff",
		Short: "Print the payoff profile of the legs in a leg file",
		RunE: func(cmd *cobra.Command, args []string) error {
			legs, current, err := loadLegs(legsPath, spot)
			if err != nil {
				return err
			}
			if !current.IsPositive() {
				return fmt.Errorf("spot is required, set it in the leg file or with --spot")
			}
			rng, err := parseRange(low, high, step)
			if err != nil {
				return err
			}

			var diagram types.PayoffDiagram
			if at == "" {
				diagram = options.ComputePayoff(legs, current, rng)
			} else {
				date, err := time.Parse(time.DateOnly, at)
				if err != nil {
					return fmt.Errorf("--at %q is not YYYY-MM-DD", at)
				}
				diagram = options.ComputePayoffAt(legs, current, rng, options.Valuation{Date: date, Volatility: vol, Rate: rate})
			}
			return writePayoff(cmd, diagram, rows)
		},
	}
	cmd.Flags().StringVarP(&legsPath, "legs", "l", "", "YAML leg file")
	cmd.Flags().StringVar(&spot, "spot", "", "current underlying price, overrides the leg file")
	cmd.Flags().StringVar(&low, "low", "", "lowest sampled price")
	cmd.Flags().StringVar(&high, "high", "", "highest sampled price")
	cmd.Flags().StringVar(&step, "step", "", "price step between samples")
	cmd.Flags().StringVar(&at, "at", "", "value options on this date with Black-Scholes instead of at expiry")
	cmd.Flags().Float64Var(&vol, "vol", 0.2, "annualized volatility used with --at")
	cmd.Flags().Float64Var(&rate, "rate", 0.04, "risk-free rate used with --at")
	cmd.Flags().IntVar(&rows, "rows", 21, "number of sample rows printed")
	_ = cmd.MarkFlagRequired("legs")
	return cmd
}

func parseRange(low, high, step string) (*options.PriceRange, error) {
	if low == "" && high == "" {
		return nil, nil
	}
	if low == "" || high == "" {
		return nil, fmt.Errorf("--low and --high must be given together")
	}
	var rng options.PriceRange
	var err error
	if rng.Low, err = decimal.NewFromString(low); err != nil {
		return nil, fmt.Errorf("--low %q: %w", low, err)
	}
	if rng.High, err = decimal.NewFromString(high); err != nil {
		return nil, fmt.Errorf("--high %q: %w", high, err)
	}
	if step != "" {
		if rng.Step, err = decimal.NewFromString(step); err != nil {
			return nil, fmt.Errorf("--step %q: %w", step, err)
		}
	}
	return &rng, nil
}

func writePayoff(cmd *cobra.Command, d types.PayoffDiagram, rows int) error {
	out := cmd.OutOrStdout()
	rr := "n/a"
	if d.RiskReward != nil {
		rr = d.RiskReward.StringFixed(2)
	}
	be := make([]string, 0, len(d.Breakevens))
	for _, b := range d.Breakevens {
		be = append(be, b.StringFixed(2))
	}
	fmt.Fprintf(out, "Max Profit:   %s\n", d.MaxProfit.StringFixed(2))
	fmt.Fprintf(out, "Max Loss:     %s\n", d.MaxLoss.StringFixed(2))
	fmt.Fprintf(out, "Breakevens:   %s\n", strings.Join(be, ", "))
	fmt.Fprintf(out, "Current P/L:  %s\n", d.CurrentPnL.StringFixed(2))
	fmt.Fprintf(out, "Risk/Reward:  %s\n\n", rr)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PRICE\tP/L\t")
	for _, p := range samplePoints(d.Points, rows) {
		fmt.Fprintf(tw, "%s\t%s\t\n", p.Price.StringFixed(2), p.PnL.StringFixed(2))
	}
	return tw.Flush()
}

// samplePoints picks n evenly spaced points, always keeping both ends.
func samplePoints(points []types.PayoffPoint, n int) []types.PayoffPoint {
	if n <= 1 || len(points) <= n {
		return points
	}
	out := make([]types.PayoffPoint, 0, n)
	last := len(points) - 1
	for i := 0; i < n; i++ {
		out = append(out, points[i*last/(n-1)])
	}
	return out
}
