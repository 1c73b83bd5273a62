package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidLeg = errors.New("invalid leg")
)

type InstrumentKind string

const (
	KindCall   InstrumentKind = "call"
	KindPut    InstrumentKind = "put"
	KindStock  InstrumentKind = "stock"
	KindFuture InstrumentKind = "future"
)

func (k InstrumentKind) IsOption() bool {
	return k == KindCall || k == KindPut
}

func (k InstrumentKind) Valid() bool {
	switch k {
	case KindCall, KindPut, KindStock, KindFuture:
		return true
	}
	return false
}

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Sign is +1 for buys and -1 for sells.
func (a Action) Sign() int64 {
	if a == ActionSell {
		return -1
	}
	return 1
}

func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// OptionContract holds the terms only an option leg carries.
type OptionContract struct {
	Strike decimal.Decimal `json:"strike" yaml:"strike"`
	Expiry time.Time       `json:"expiry" yaml:"expiry"`
}

// Leg is one component of a multi-leg position. Contract is non-nil exactly
// when Kind is a call or a put.
type Leg struct {
	Index      int              `json:"index"`
	Kind       InstrumentKind   `json:"kind"`
	Action     Action           `json:"action"`
	Contract   *OptionContract  `json:"contract,omitempty"`
	Quantity   int64            `json:"quantity"`
	EntryPrice decimal.Decimal  `json:"entryPrice"`
	ExitPrice  *decimal.Decimal `json:"exitPrice,omitempty"`
	Premium    decimal.Decimal  `json:"premium"`
}

func NewOptionLeg(index int, kind InstrumentKind, action Action, strike decimal.Decimal, expiry time.Time, quantity int64, premium decimal.Decimal) (Leg, error) {
	leg := Leg{
		Index:      index,
		Kind:       kind,
		Action:     action,
		Contract:   &OptionContract{Strike: strike, Expiry: expiry},
		Quantity:   quantity,
		EntryPrice: premium,
		Premium:    premium,
	}
	return leg, leg.Validate()
}

func NewUnderlyingLeg(index int, kind InstrumentKind, action Action, quantity int64, entryPrice decimal.Decimal) (Leg, error) {
	leg := Leg{
		Index:      index,
		Kind:       kind,
		Action:     action,
		Quantity:   quantity,
		EntryPrice: entryPrice,
	}
	return leg, leg.Validate()
}

// Validate checks the kind/contract invariant and the basic field ranges.
func (l Leg) Validate() error {
	if !l.Kind.Valid() {
		return fmt.Errorf("leg %d: unknown kind %q: %w", l.Index, l.Kind, ErrInvalidLeg)
	}
	if !l.Action.Valid() {
		return fmt.Errorf("leg %d: unknown action %q: %w", l.Index, l.Action, ErrInvalidLeg)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("leg %d: quantity must be positive: %w", l.Index, ErrInvalidLeg)
	}
	if l.Kind.IsOption() {
		if l.Contract == nil {
			return fmt.Errorf("leg %d: %s requires strike and expiry: %w", l.Index, l.Kind, ErrInvalidLeg)
		}
		if !l.Contract.Strike.IsPositive() {
			return fmt.Errorf("leg %d: strike must be positive: %w", l.Index, ErrInvalidLeg)
		}
		if l.Contract.Expiry.IsZero() {
			return fmt.Errorf("leg %d: missing expiry: %w", l.Index, ErrInvalidLeg)
		}
	} else if l.Contract != nil {
		return fmt.Errorf("leg %d: %s cannot carry strike or expiry: %w", l.Index, l.Kind, ErrInvalidLeg)
	}
	if l.Premium.IsNegative() || l.EntryPrice.IsNegative() {
		return fmt.Errorf("leg %d: negative price: %w", l.Index, ErrInvalidLeg)
	}
	return nil
}

// Strike returns the option strike, or false for stock and future legs.
func (l Leg) Strike() (decimal.Decimal, bool) {
	if l.Contract == nil {
		return decimal.Zero, false
	}
	return l.Contract.Strike, true
}

func (l Leg) Expiry() (time.Time, bool) {
	if l.Contract == nil {
		return time.Time{}, false
	}
	return l.Contract.Expiry, true
}

// Cost is the per-unit price paid or received at entry. Option legs use the
// premium and fall back to the entry price when no premium was recorded.
func (l Leg) Cost() decimal.Decimal {
	if l.Kind.IsOption() && !l.Premium.IsZero() {
		return l.Premium
	}
	return l.EntryPrice
}

func (l Leg) SignedQuantity() decimal.Decimal {
	return decimal.NewFromInt(l.Action.Sign() * l.Quantity)
}
