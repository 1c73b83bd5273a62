package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"optionlab/types"
)

// LegFile is a standalone list of concrete legs used by the payoff and
// classify commands.
type LegFile struct {
	Spot string     `yaml:"spot"`
	Legs []LegEntry `yaml:"legs"`
}

type LegEntry struct {
	Kind       string `yaml:"kind"`
	Action     string `yaml:"action"`
	Quantity   int64  `yaml:"quantity"`
	Strike     string `yaml:"strike"`
	Expiry     string `yaml:"expiry"`
	Premium    string `yaml:"premium"`
	EntryPrice string `yaml:"entry_price"`
	ExitPrice  string `yaml:"exit_price"`
}

func LoadLegs(path string) (*LegFile, []types.Leg, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open legs %s: %w", path, err)
	}
	defer f.Close()
	return DecodeLegs(f)
}

// DecodeLegs parses a leg file and builds validated legs in file order.
func DecodeLegs(r io.Reader) (*LegFile, []types.Leg, error) {
	var lf LegFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&lf); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("parse yaml: %w", err)
	}

	legs := make([]types.Leg, 0, len(lf.Legs))
	for i, e := range lf.Legs {
		leg, err := e.leg(i)
		if err != nil {
			return nil, nil, err
		}
		legs = append(legs, leg)
	}
	return &lf, legs, nil
}

func (e LegEntry) leg(i int) (types.Leg, error) {
	kind := types.InstrumentKind(e.Kind)
	action := types.Action(e.Action)
	field := func(name string) string { return fmt.Sprintf("legs[%d].%s", i, name) }

	var (
		leg types.Leg
		err error
	)
	if kind.IsOption() {
		strike, perr := parseDecimal(field("strike"), e.Strike)
		if perr != nil {
			return leg, perr
		}
		expiry, perr := parseDate(field("expiry"), e.Expiry)
		if perr != nil {
			return leg, perr
		}
		premium, perr := parseOptionalDecimal(field("premium"), e.Premium)
		if perr != nil {
			return leg, perr
		}
		leg, err = types.NewOptionLeg(i, kind, action, strike, expiry, e.Quantity, premium)
	} else {
		price, perr := parseDecimal(field("entry_price"), e.EntryPrice)
		if perr != nil {
			return leg, perr
		}
		leg, err = types.NewUnderlyingLeg(i, kind, action, e.Quantity, price)
	}
	if err != nil {
		return leg, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if e.ExitPrice != "" {
		exit, perr := parseDecimal(field("exit_price"), e.ExitPrice)
		if perr != nil {
			return leg, perr
		}
		leg.ExitPrice = &exit
	}
	return leg, nil
}
