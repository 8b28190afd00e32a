// Package money handles currency amounts as integer cents and commission
// rates as basis points. Arithmetic stays exact; floats never touch a
// ledger value.
package money

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidAmount = errors.New("money: invalid amount")

// MaxCents is the largest amount the package accepts, about $4.6
// trillion. Commission multiplies cents by a basis-point rate up to
// 10000, so amounts at or below this bound cannot overflow int64.
const MaxCents = int64(1)<<62/10000 - 1

// Commission computes a commission in cents from a revenue amount and a
// rate in basis points, rounding half-up on the cent. amountCents must
// not exceed MaxCents.
func Commission(amountCents int64, rateBPS int) int64 {
	return (amountCents*int64(rateBPS) + 5000) / 10000
}

// Format renders cents as a decimal string with two fraction digits,
// e.g. 123456 → "1234.56".
func Format(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// FormatRate renders basis points as a decimal fraction with four digits,
// e.g. 2000 → "0.2000".
func FormatRate(bps int) string {
	return fmt.Sprintf("%d.%04d", bps/10000, bps%10000)
}

// Parse converts a non-negative decimal amount string to cents. At most
// two fraction digits are accepted; anything finer would silently lose
// money. Amounts above MaxCents are rejected.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || len(frac) > 2 {
		return 0, ErrInvalidAmount
	}

	var units int64
	for _, c := range whole {
		if c < '0' || c > '9' {
			return 0, ErrInvalidAmount
		}
		units = units*10 + int64(c-'0')
		if units > (1<<62)/100 {
			return 0, ErrInvalidAmount
		}
	}

	cents := units * 100
	mult := int64(10)
	for _, c := range frac {
		if c < '0' || c > '9' {
			return 0, ErrInvalidAmount
		}
		cents += int64(c-'0') * mult
		mult /= 10
	}
	if cents > MaxCents {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}
