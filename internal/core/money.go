// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Decimal conversion goes through
// shopspring/decimal so values such as 30.5 or "30,50" never touch a float.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-negative amount in cents.
type Money struct {
	Cents int64
}

// ParseAmount converts user or file input into Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, the
// Brazilian grouping form (1.234,56) and an optional "R$" prefix. Rounding
// is half-up on the third decimal place. An empty string is zero: a
// missing amount counts as nothing, never as an error.
//
// Examples:
//
//	ParseAmount("50")        -> 5000
//	ParseAmount("30,5")      -> 3050
//	ParseAmount("R$ 1.234,56") -> 123456
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	if s == "" {
		return Money{}, nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d to cents. Negative values are rejected.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	return centsOf(d)
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// centsOf rounds d to cents, rejecting values an int64 cannot hold.
func centsOf(d decimal.Decimal) (Money, error) {
	c := d.Shift(2).Round(0)
	if c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: c.IntPart()}, nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// BRL formats the amount the way reports show it: "R$ 50,00". No
// thousands grouping is applied.
func (m Money) BRL() string {
	return "R$ " + strings.Replace(m.Decimal().StringFixed(2), ".", ",", 1)
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// IsZero reports a zero amount.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON writes the amount as a plain JSON number (50, 30.5).
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON reads numbers and numeric strings. null, false and ""
// decode to zero. Negative numbers decode as-is.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null", "false", `""`:
		*m = Money{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseAmount(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return ErrInvalidAmount
	}
	// Sign is checked by Validate so a bad record can be reported on its own.
	parsed, err := centsOf(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
