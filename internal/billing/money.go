package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits kept for prices and totals.
const MoneyPlaces = 2

// ParseMoney parses a non-negative amount with at most two fractional digits.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if !IsMoney(d) {
		return decimal.Zero, fmt.Errorf("invalid amount %q: must be non-negative with at most %d decimals", s, MoneyPlaces)
	}
	return d, nil
}

// IsMoney reports whether d is a valid price: non-negative, at most two decimals.
func IsMoney(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(MoneyPlaces))
}

// RoundMoney rounds half away from zero to two decimals.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// FormatMoney renders d with exactly two decimals, e.g. "1100.00".
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}
