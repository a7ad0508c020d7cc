package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in centavos. All arithmetic on prices happens on this
// integer type; decimal strings only exist at the edges.
type Money int64

// Reais builds a Money value from whole reais and centavos.
func Reais(units, cents int64) Money {
	return Money(units*100 + cents)
}

// ParseMoney parses a decimal amount such as "45", "45.5" or "45,50".
// Amounts with more than two fractional digits are rounded half-up.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, fmt.Errorf("parse money: empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse money %q: negative amount", s)
	}
	return Money(d.Shift(2).Round(0).IntPart()), nil
}

// Decimal returns the amount in reais.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String formats the amount with two decimals, e.g. "45.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// BRL formats the amount for display, e.g. "R$ 45,00".
func (m Money) BRL() string {
	return "R$ " + strings.Replace(m.String(), ".", ",", 1)
}

// DivRound divides the amount by n, rounding half-up to the centavo.
// Division by zero yields zero.
func (m Money) DivRound(n int) Money {
	if n <= 0 {
		return 0
	}
	q := decimal.New(int64(m), 0).Div(decimal.New(int64(n), 0)).Round(0)
	return Money(q.IntPart())
}

// Mul multiplies the amount by a non-negative quantity.
func (m Money) Mul(qty int) Money {
	if qty <= 0 {
		return 0
	}
	return m * Money(qty)
}
