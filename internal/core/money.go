// Package core holds the ledger domain: dates, money, templates, instances
// and the calendar arithmetic that connects them.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// maxUnits keeps units*100 inside int64.
const maxUnits = (1<<63 - 1) / 100

// ParseAmount reads a template amount typed by a user, such as "950",
// "950.00" or "950,5", into Money. Either '.' or ',' separates the cents.
// Digits past the second decimal round half up, so "0.125" is 13 cents.
// Amounts must be strictly positive and carry no sign.
func ParseAmount(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || s[0] == '+' || s[0] == '-' {
		return Money{}, ErrInvalidAmount
	}

	units, frac, _ := strings.Cut(s, ".")
	if units == "" {
		units = "0"
	}
	if !asciiDigits(units) || !asciiDigits(frac) {
		return Money{}, ErrInvalidAmount
	}
	whole, err := strconv.ParseInt(units, 10, 64)
	if err != nil || whole > maxUnits {
		return Money{}, ErrInvalidAmount
	}

	frac += "00"
	cents := whole*100 + int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	if len(frac) > 4 && frac[2] >= '5' {
		cents++
	}
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// asciiDigits reports whether s holds only 0-9. A second '.' fails here.
func asciiDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Major returns the amount in major currency units for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Major() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the amount with two decimals, e.g. "50.00".
func (m Money) String() string {
	sign := ""
	cents := m.Cents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
