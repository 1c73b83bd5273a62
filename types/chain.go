package types

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMalformedSnapshot = errors.New("malformed chain snapshot")

type OptionQuote struct {
	Expiry       time.Time       `json:"expiry"`
	Strike       decimal.Decimal `json:"strike"`
	Kind         InstrumentKind  `json:"kind"`
	Premium      decimal.Decimal `json:"premium"`
	ImpliedVol   float64         `json:"impliedVol"`
	OpenInterest int64           `json:"openInterest"`
}

// ChainSnapshot is the option chain and underlying spot for one symbol on one
// trading day.
type ChainSnapshot struct {
	Symbol string          `json:"symbol"`
	Date   time.Time       `json:"date"`
	Spot   decimal.Decimal `json:"spot"`
	Quotes []OptionQuote   `json:"quotes"`
}

func (s *ChainSnapshot) Validate() error {
	if !s.Spot.IsPositive() {
		return fmt.Errorf("%s %s: non-positive spot %s: %w", s.Symbol, s.Date.Format(time.DateOnly), s.Spot, ErrMalformedSnapshot)
	}
	for _, q := range s.Quotes {
		if !q.Kind.IsOption() {
			return fmt.Errorf("%s %s: quote kind %q: %w", s.Symbol, s.Date.Format(time.DateOnly), q.Kind, ErrMalformedSnapshot)
		}
		if q.Premium.IsNegative() || !q.Strike.IsPositive() || q.Expiry.IsZero() {
			return fmt.Errorf("%s %s: bad quote %s %s %s: %w", s.Symbol, s.Date.Format(time.DateOnly), q.Kind, q.Strike, q.Expiry.Format(time.DateOnly), ErrMalformedSnapshot)
		}
	}
	return nil
}

func (s *ChainSnapshot) Quote(expiry time.Time, strike decimal.Decimal, kind InstrumentKind) (OptionQuote, bool) {
	for _, q := range s.Quotes {
		if q.Kind == kind && q.Strike.Equal(strike) && SameDay(q.Expiry, expiry) {
			return q, true
		}
	}
	return OptionQuote{}, false
}

// Expiries returns the distinct expiries in the snapshot, earliest first.
func (s *ChainSnapshot) Expiries() []time.Time {
	seen := make(map[string]bool)
	var out []time.Time
	for _, q := range s.Quotes {
		key := q.Expiry.Format(time.DateOnly)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q.Expiry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Strikes returns the sorted strikes quoted for an expiry and option kind.
func (s *ChainSnapshot) Strikes(expiry time.Time, kind InstrumentKind) []decimal.Decimal {
	var out []decimal.Decimal
	for _, q := range s.Quotes {
		if q.Kind == kind && SameDay(q.Expiry, expiry) {
			out = append(out, q.Strike)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween counts calendar days from a to b, ignoring the time of day.
func DaysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
