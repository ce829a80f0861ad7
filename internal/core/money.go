// Package core provides the ledger domain model shared by every layer.
//
// This file contains amount parsing and formatting. Amounts are
// shopspring decimals kept as positive magnitudes; the transaction or
// debt kind carries the direction.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered amount string to a decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns ErrInvalidAmount for malformed input, negatives, and zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatLira formats an amount as a Turkish lira display string,
// e.g. "1250,50 ₺". Two fixed decimals, comma separator.
func FormatLira(d decimal.Decimal) string {
	s := d.StringFixed(2)
	s = strings.ReplaceAll(s, ".", ",")
	return s + " ₺"
}
