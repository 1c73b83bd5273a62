package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"optionlab/internal/options"
	"optionlab/types"
)

func greeksCmd() *cobra.Command {
	var (
		legsPath string
		kind     string
		spot     float64
		strike   float64
		days     int
		premium  float64
		vol      float64
		rate     float64
		asOf     string
	)
	cmd := &cobra.Command{
		Use:   "greeks",
		Short: "Compute Black-Scholes Greeks for one option or a leg file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if legsPath != "" {
				return portfolioGreeks(cmd, legsPath, asOf, vol, rate)
			}

			k := types.InstrumentKind(kind)
			if !k.IsOption() {
				return fmt.Errorf("--kind must be call or put, got %q", kind)
			}
			t := float64(days) / 365
			sigma := vol
			if premium > 0 {
				sigma = options.ImpliedVolatility(premium, spot, strike, t, rate, k)
				if sigma == 0 {
					return fmt.Errorf("no volatility reproduces premium %.4f", premium)
				}
			}
			g := options.ComputeGreeks(spot, strike, t, rate, sigma, k)
			writeGreeks(cmd, g.Delta, g.Gamma, g.Theta, g.Vega, g.Rho)
			fmt.Fprintf(cmd.OutOrStdout(), "IV:     %.4f\n", sigma)
			fmt.Fprintf(cmd.OutOrStdout(), "Price:  %.4f\n", options.BlackScholesPrice(spot, strike, t, rate, sigma, k))
			return nil
		},
	}
	cmd.Flags().StringVarP(&legsPath, "legs", "l", "", "aggregate the Greeks of a YAML leg file instead")
	cmd.Flags().StringVar(&kind, "kind", "call", "call or put")
	cmd.Flags().Float64Var(&spot, "spot", 100, "underlying price")
	cmd.Flags().Float64Var(&strike, "strike", 100, "strike price")
	cmd.Flags().IntVar(&days, "days", 30, "calendar days to expiry")
	cmd.Flags().Float64Var(&premium, "premium", 0, "solve the volatility from this option price")
	cmd.Flags().Float64Var(&vol, "vol", 0.2, "annualized volatility")
	cmd.Flags().Float64Var(&rate, "rate", 0.04, "risk-free rate")
	cmd.Flags().StringVar(&asOf, "as-of", "", "valuation date for --legs, defaults to today")
	return cmd
}

func portfolioGreeks(cmd *cobra.Command, path, asOf string, vol, rate float64) error {
	legs, spot, err := loadLegs(path, "")
	if err != nil {
		return err
	}
	if !spot.IsPositive() {
		return fmt.Errorf("leg file %s has no spot", path)
	}
	date := time.Now()
	if asOf != "" {
		if date, err = time.Parse(time.DateOnly, asOf); err != nil {
			return fmt.Errorf("--as-of %q is not YYYY-MM-DD", asOf)
		}
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEG\tKIND\tACTION\tQTY\tDELTA\tGAMMA\tTHETA\tVEGA")
	exposures := make([]options.LegExposure, 0, len(legs))
	for _, leg := range legs {
		g := options.LegGreeks(leg, spot.InexactFloat64(), date, rate, vol)
		exposures = append(exposures, options.LegExposure{Leg: leg, Greeks: &g})
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.4f\t%.4f\t%.4f\t%.4f\n",
			leg.Index, leg.Kind, leg.Action, leg.Quantity, g.Delta, g.Gamma, g.Theta, g.Vega)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p := options.Aggregate(exposures)
	fmt.Fprintln(out)
	writeGreeks(cmd, p.Delta, p.Gamma, p.Theta, p.Vega, p.Rho)
	fmt.Fprintf(out, "Net:    %s\n", p.NetExposure.StringFixed(2))
	return nil
}

func writeGreeks(cmd *cobra.Command, delta, gamma, theta, vega, rho float64) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Delta:  %.4f\n", delta)
	fmt.Fprintf(out, "Gamma:  %.4f\n", gamma)
	fmt.Fprintf(out, "Theta:  %.4f\n", theta)
	fmt.Fprintf(out, "Vega:   %.4f\n", vega)
	fmt.Fprintf(out, "Rho:    %.4f\n", rho)
}
