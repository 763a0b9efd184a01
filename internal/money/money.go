// Package money centralises monetary arithmetic. All amounts are
// shopspring decimals rounded to two places; float64 never touches a balance.
package money

import "github.com/shopspring/decimal"

// Scale is the number of minor-unit digits carried by every stored amount.
const Scale = 2

// Epsilon is the payment reconciliation tolerance: exactly one minor
// currency unit. It absorbs rounding differences between a payer's
// transfer and the invoiced total, nothing more.
var Epsilon = decimal.New(1, -Scale)

// Round normalises an amount to minor-unit precision, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// FromMinorUnits builds an amount from an integer count of minor units.
func FromMinorUnits(n int64) decimal.Decimal {
	return decimal.New(n, -Scale)
}

// IsPositive reports whether the amount is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}
