package payment

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedAmount is returned when a decimal amount string cannot be
// parsed back into minor units.
var ErrMalformedAmount = errors.New("malformed amount string")

// pow10 returns 10^n for the small exponents currency math needs.
func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

// FormatMinor renders an amount of integer minor units as the decimal
// string some providers expect, e.g. 129900 with exponent 2 -> "1299.00".
// All arithmetic is integral so a formatted amount always parses back to
// the original value.
func FormatMinor(amount int64, exponent int) string {
	if exponent <= 0 {
		return fmt.Sprintf("%d", amount)
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	scale := pow10(exponent)
	return fmt.Sprintf("%s%d.%0*d", sign, amount/scale, exponent, amount%scale)
}

// ParseMinor converts a decimal amount string back to integer minor units.
// Fractional digits beyond the currency exponent are rounded half-up, the
// rounding mode documented for every adapter in this package.
func ParseMinor(s string, exponent int) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMalformedAmount
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" && frac == "" {
		return 0, ErrMalformedAmount
	}
	if whole == "" {
		whole = "0"
	}
	var units int64
	for _, c := range whole {
		if c < '0' || c > '9' {
			return 0, ErrMalformedAmount
		}
		units = units*10 + int64(c-'0')
	}
	for _, c := range frac {
		if c < '0' || c > '9' {
			return 0, ErrMalformedAmount
		}
	}
	// Normalize the fraction to exponent digits, remembering the first
	// dropped digit for round-half-up.
	roundUp := false
	if len(frac) > exponent {
		roundUp = frac[exponent] >= '5'
		frac = frac[:exponent]
	}
	for len(frac) < exponent {
		frac += "0"
	}
	minor := units*pow10(exponent) + minorFraction(frac)
	if roundUp {
		minor++
	}
	if neg {
		minor = -minor
	}
	return minor, nil
}

// minorFraction converts an exponent-length digit string to its integer
// value.
func minorFraction(frac string) int64 {
	var v int64
	for _, c := range frac {
		v = v*10 + int64(c-'0')
	}
	return v
}
