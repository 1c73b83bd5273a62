// Package presets builds the leg templates of common option strategies so a
// backtest config can name a strategy instead of listing its legs.
package presets

import (
	"errors"
	"fmt"
	"sort"

	"optionlab/types"
)

var ErrUnknownPreset = errors.New("unknown strategy preset")

type legSpec struct {
	kind   types.InstrumentKind
	action types.Action
	qty    int64
	// offset in wing widths from the selected strike
	wings int
}

var (
	buyCall  = func(w int) legSpec { return legSpec{types.KindCall, types.ActionBuy, 1, w} }
	sellCall = func(w int) legSpec { return legSpec{types.KindCall, types.ActionSell, 1, w} }
	buyPut   = func(w int) legSpec { return legSpec{types.KindPut, types.ActionBuy, 1, w} }
	sellPut  = func(w int) legSpec { return legSpec{types.KindPut, types.ActionSell, 1, w} }
	stock    = legSpec{types.KindStock, types.ActionBuy, 1, 0}
)

var catalog = map[string][]legSpec{
	"long_call":        {buyCall(0)},
	"short_call":       {sellCall(0)},
	"long_put":         {buyPut(0)},
	"short_put":        {sellPut(0)},
	"covered_call":     {stock, sellCall(1)},
	"protective_put":   {stock, buyPut(-1)},
	"collar":           {stock, buyPut(-1), sellCall(1)},
	"bull_call_spread": {buyCall(0), sellCall(1)},
	"bear_call_spread": {sellCall(0), buyCall(1)},
	"bull_put_spread":  {buyPut(-1), sellPut(0)},
	"bear_put_spread":  {sellPut(-1), buyPut(0)},
	"long_straddle":    {buyPut(0), buyCall(0)},
	"short_straddle":   {sellPut(0), sellCall(0)},
	"long_strangle":    {buyPut(-1), buyCall(1)},
	"short_strangle":   {sellPut(-1), sellCall(1)},
	"iron_condor":      {buyPut(-2), sellPut(-1), sellCall(1), buyCall(2)},
	"iron_butterfly":   {buyPut(-1), sellPut(0), sellCall(0), buyCall(1)},
	"call_butterfly":   {buyCall(-1), {types.KindCall, types.ActionSell, 2, 0}, buyCall(1)},
	"put_butterfly":    {buyPut(-1), {types.KindPut, types.ActionSell, 2, 0}, buyPut(1)},
}

// Names lists the presets in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Legs returns the templates for a preset. width is the distance between
// strikes in strike steps; values below one are treated as one. Every leg
// quantity is multiplied by contracts.
func Legs(name string, width int, contracts int64) ([]types.LegTemplate, error) {
	specs, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownPreset)
	}
	if width < 1 {
		width = 1
	}
	if contracts < 1 {
		contracts = 1
	}
	legs := make([]types.LegTemplate, 0, len(specs))
	for _, s := range specs {
		legs = append(legs, types.LegTemplate{
			Kind:         s.kind,
			Action:       s.action,
			Quantity:     s.qty * contracts,
			StrikeOffset: s.wings * width,
		})
	}
	return legs, nil
}
