// Package fx converts foreign-currency amounts into the reporting basis.
package fx

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/money"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

// BaseCurrency is the reporting basis. Every aggregate the engine produces
// is denominated in it.
const BaseCurrency = "NGN"

// ErrInvalidRate occurs when a conversion is attempted with a non-positive rate.
var ErrInvalidRate = fmt.Errorf("fx: rate must be positive: %w", shared.ErrValidation)

// Normalize converts (amount, currency) into the base currency. The base
// currency is the identity; any other currency is multiplied by rate, which
// is expressed as base-currency units per one foreign unit. The caller
// supplies the rate explicitly because it is mutable at any time and reports
// re-price against whatever the current value is.
func Normalize(amount decimal.Decimal, currency string, rate decimal.Decimal) (decimal.Decimal, error) {
	if currency == BaseCurrency {
		return amount, nil
	}
	if rate.Sign() <= 0 {
		return decimal.Decimal{}, ErrInvalidRate
	}
	return money.Round(amount.Mul(rate)), nil
}
