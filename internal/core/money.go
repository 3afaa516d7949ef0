// Package core provides the budget domain types and money handling.
//
// Amounts are kept as integer cents so that sums over categories and groups
// are exact. Decimal strings on the wire are converted with shopspring/decimal.
package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

var (
	hundred  = decimal.NewFromInt(100)
	maxMoney = decimal.New(1, 13) // 10 trillion units keeps cents well inside int64
)

// Cents builds a Money value.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// ParseAmount converts a decimal string to Money.
//
// Both dot (12.34) and comma (12,34) separators are accepted. The value is
// rounded half-up to the cent. Negative, non-numeric and absurdly large values
// are rejected with ErrInvalidAmount; zero is allowed.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents
//	ParseAmount("-1")     -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return FromDecimal(d)
}

// ParseAmountJSON accepts a JSON number or a JSON string holding a decimal.
func ParseAmountJSON(raw json.RawMessage) (Money, error) {
	txt := strings.TrimSpace(string(raw))
	if txt == "" || txt == "null" {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(txt, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Money{}, ErrInvalidAmount
		}
		return ParseAmount(s)
	}
	// Reject boolean, objects and comma-formatted numbers that are not valid JSON numbers.
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return Money{}, ErrInvalidAmount
	}
	return ParseAmount(n.String())
}

// FromDecimal converts a non-negative decimal amount to Money.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() || d.GreaterThan(maxMoney) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}, nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

func (m Money) IsNegative() bool { return m.Cents < 0 }

// Validate rejects negative amounts. Zero is a valid target or income.
func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON writes the amount as a plain JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON reads either a JSON number or a decimal string. Negative values
// are accepted here because remote payloads may carry signed sums; callers
// validate where negative amounts are not allowed.
func (m *Money) UnmarshalJSON(b []byte) error {
	txt := strings.Trim(strings.TrimSpace(string(b)), `"`)
	d, err := decimal.NewFromString(txt)
	if err != nil || d.Abs().GreaterThan(maxMoney) {
		return ErrInvalidAmount
	}
	m.Cents = d.Mul(hundred).Round(0).IntPart()
	return nil
}
