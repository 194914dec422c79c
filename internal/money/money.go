// internal/money/money.go
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a fixed-scale-2 decimal amount. Every monetary column in the
// system goes through this type; binary floating point is never used for
// currency arithmetic.
type Money struct {
	d decimal.Decimal
}

// Zero returns 0.00.
func Zero() Money {
	return Money{d: decimal.Zero}
}

// New builds an amount from major and minor units, e.g. New(19, 99) == 19.99.
func New(units int64, cents int64) Money {
	total := units*100 + cents
	return Money{d: decimal.New(total, -2)}
}

// FromMinorUnits builds an amount from a count of cents.
func FromMinorUnits(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// Parse reads a decimal string such as "10000.00". Amounts with more than
// two decimal places are rejected rather than silently rounded.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	if d.Exponent() < -2 {
		if !d.Equal(d.Round(2)) {
			return Money{}, fmt.Errorf("invalid money amount %q: more than 2 decimal places", s)
		}
	}
	return Money{d: d.Round(2)}, nil
}

// MustParse is Parse for package-level constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

func (m Money) Sub(o Money) Money {
	return Money{d: m.d.Sub(o.d)}
}

// ApplyRate returns round-half-up(m × rate / 100) at scale 2. This is the
// only rounding point in the money pipeline; callers derive the complement
// by subtraction so the two parts always sum back to m exactly.
func (m Money) ApplyRate(rate decimal.Decimal) Money {
	raw := m.d.Mul(rate).Div(decimal.NewFromInt(100))
	// decimal.Round is round-half-away-from-zero, which is half-up for the
	// non-negative amounts this system deals in.
	return Money{d: raw.Round(2)}
}

func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// Decimal exposes the underlying decimal for read-only use (reporting sums).
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// MinorUnits returns the amount in cents, for gateways that bill in integer
// minor units.
func (m Money) MinorUnits() int64 {
	return m.d.Shift(2).IntPart()
}

// String renders with exactly two decimal places, e.g. "9800.00".
func (m Money) String() string {
	return m.d.StringFixed(2)
}

// Value stores the amount as a fixed-point string for decimal(12,2) columns.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m *Money) Scan(value interface{}) error {
	if value == nil {
		*m = Zero()
		return nil
	}

	switch v := value.(type) {
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		m.d = d.Round(2)
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		m.d = d.Round(2)
	case int64:
		m.d = decimal.NewFromInt(v)
	case float64:
		// Some drivers hand decimals back as float64; snap to scale 2.
		m.d = decimal.NewFromFloat(v).Round(2)
	default:
		return fmt.Errorf("cannot scan %T into money.Money", value)
	}

	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" || s == "" {
		*m = Zero()
		return nil
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
