package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"optionlab/internal/options"
	"optionlab/types"
)

var ErrQuoteMissing = errors.New("no quote for open leg")

var hundred = decimal.NewFromInt(100)

// position is the open multi-leg structure. Leg EntryPrice and Premium hold
// the fill price after slippage.
type position struct {
	entryDate  time.Time
	legs       []types.Leg
	entryValue decimal.Decimal
	basis      decimal.Decimal
	commission decimal.Decimal
	greeks     types.PortfolioGreeks

	// Updated on every mark.
	lastMarks  []decimal.Decimal
	unrealized decimal.Decimal
	peakPct    decimal.Decimal
}

func newPosition(entryDate time.Time, legs []types.Leg, marks []decimal.Decimal, commission decimal.Decimal) *position {
	p := &position{
		entryDate:  entryDate,
		legs:       legs,
		entryValue: decimal.Zero,
		basis:      decimal.Zero,
		commission: commission,
	}
	for _, leg := range legs {
		p.entryValue = p.entryValue.Add(leg.SignedQuantity().Mul(leg.EntryPrice))
		p.basis = p.basis.Add(decimal.NewFromInt(leg.Quantity).Mul(leg.EntryPrice))
	}
	p.update(marks)
	p.peakPct = p.pnlPct()
	return p
}

// mark values every leg against the snapshot. Legs at or past expiry settle
// at intrinsic value; live option legs need a quote.
func (p *position) mark(snap *types.ChainSnapshot) ([]decimal.Decimal, error) {
	marks := make([]decimal.Decimal, len(p.legs))
	for i, leg := range p.legs {
		expiry, isOption := leg.Expiry()
		if !isOption {
			marks[i] = snap.Spot
			continue
		}
		strike, _ := leg.Strike()
		if !snap.Date.Before(expiry) || types.SameDay(snap.Date, expiry) {
			marks[i] = options.IntrinsicValue(leg.Kind, strike, snap.Spot)
			continue
		}
		q, ok := snap.Quote(expiry, strike, leg.Kind)
		if !ok {
			return nil, fmt.Errorf("%s %s %s exp %s on %s: %w",
				snap.Symbol, leg.Kind, strike, expiry.Format(time.DateOnly), snap.Date.Format(time.DateOnly), ErrQuoteMissing)
		}
		marks[i] = q.Premium
	}
	return marks, nil
}

func (p *position) update(marks []decimal.Decimal) {
	p.lastMarks = marks
	p.unrealized = p.value(marks).Sub(p.entryValue)
	if pct := p.pnlPct(); pct.GreaterThan(p.peakPct) {
		p.peakPct = pct
	}
}

func (p *position) value(prices []decimal.Decimal) decimal.Decimal {
	v := decimal.Zero
	for i, leg := range p.legs {
		v = v.Add(leg.SignedQuantity().Mul(prices[i]))
	}
	return v
}

// pnlPct is unrealized gross P/L as a percentage of the entry basis.
func (p *position) pnlPct() decimal.Decimal {
	if p.basis.IsZero() {
		return decimal.Zero
	}
	return p.unrealized.Div(p.basis).Mul(hundred)
}

// daysToExpiry returns the days until the nearest option expiry, or false
// when the position holds no options.
func (p *position) daysToExpiry(day time.Time) (int, bool) {
	dte, found := 0, false
	for _, leg := range p.legs {
		expiry, ok := leg.Expiry()
		if !ok {
			continue
		}
		d := types.DaysBetween(day, expiry)
		if !found || d < dte {
			dte, found = d, true
		}
	}
	return dte, found
}

// close realizes the position at the last marks. Legs already settled at
// expiry are not charged slippage.
func (p *position) close(day time.Time, reason types.ExitReason, slippagePct, commissionPerLeg decimal.Decimal) types.BacktestedTrade {
	legs := make([]types.Leg, len(p.legs))
	exits := make([]decimal.Decimal, len(p.legs))
	var qty int64
	for i, leg := range p.legs {
		exit := p.lastMarks[i]
		if expiry, ok := leg.Expiry(); !ok || day.Before(expiry) && !types.SameDay(day, expiry) {
			// Closing a long sells, closing a short buys back.
			exit = slip(exit, opposite(leg.Action), slippagePct)
		}
		exits[i] = exit
		leg.ExitPrice = &exits[i]
		legs[i] = leg
		qty += leg.Quantity
	}

	exitValue := p.value(exits)
	gross := exitValue.Sub(p.entryValue)
	commission := p.commission.Add(commissionPerLeg.Mul(decimal.NewFromInt(int64(len(p.legs)))))
	net := gross.Sub(commission)
	pct := decimal.Zero
	if !p.basis.IsZero() {
		pct = net.Div(p.basis).Mul(hundred)
	}

	return types.BacktestedTrade{
		EntryDate:   p.entryDate,
		ExitDate:    day,
		EntryValue:  p.entryValue,
		ExitValue:   exitValue,
		Quantity:    qty,
		GrossPnL:    gross,
		Commission:  commission,
		PnL:         net,
		PnLPct:      pct,
		HoldingDays: types.DaysBetween(p.entryDate, day),
		ExitReason:  reason,
		Legs:        legs,
		EntryGreeks: p.greeks,
	}
}

// slip moves a fill against the trader: buys pay more, sells receive less.
func slip(price decimal.Decimal, action types.Action, slippagePct decimal.Decimal) decimal.Decimal {
	if slippagePct.IsZero() {
		return price
	}
	adj := price.Mul(slippagePct).Div(hundred)
	if action == types.ActionBuy {
		return price.Add(adj)
	}
	return price.Sub(adj)
}

func opposite(a types.Action) types.Action {
	if a == types.ActionBuy {
		return types.ActionSell
	}
	return types.ActionBuy
}
