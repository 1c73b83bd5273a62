package main

import (
	"fmt"

	"github.com/shopspring/decimal"

	"optionlab/internal/config"
	"optionlab/types"
)

// loadLegs reads a leg file and resolves the spot price, preferring the
// command line value.
func loadLegs(path, spotFlag string) ([]types.Leg, decimal.Decimal, error) {
	lf, legs, err := config.LoadLegs(path)
	if err != nil {
		return nil, decimal.Zero, err
	}
	raw := spotFlag
	if raw == "" {
		raw = lf.Spot
	}
	if raw == "" {
		return legs, decimal.Zero, nil
	}
	spot, err := decimal.NewFromString(raw)
	if err != nil || !spot.IsPositive() {
		return nil, decimal.Zero, fmt.Errorf("spot %q must be a positive number", raw)
	}
	return legs, spot, nil
}
