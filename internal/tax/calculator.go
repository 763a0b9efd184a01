// Package tax computes statutory VAT and withholding amounts for invoices
// issued under the Nigerian regime.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/money"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

// EntityType distinguishes withholding rates for the invoiced client.
type EntityType string

const (
	EntityIndividual EntityType = "INDIVIDUAL"
	EntityCorporate  EntityType = "CORPORATE"
)

// Statutory rates. VAT is flat; WHT depends on the client entity type.
var (
	VATRate       = decimal.RequireFromString("0.075")
	WHTIndividual = decimal.RequireFromString("0.05")
	WHTCorporate  = decimal.RequireFromString("0.10")
)

// InvoiceTax holds the derived tax amounts for one invoice.
type InvoiceTax struct {
	VAT             decimal.Decimal
	WHT             decimal.Decimal
	TotalReceivable decimal.Decimal
}

// WHTRate returns the withholding rate for an entity type.
func WHTRate(entity EntityType) (decimal.Decimal, error) {
	switch entity {
	case EntityIndividual:
		return WHTIndividual, nil
	case EntityCorporate:
		return WHTCorporate, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: unknown entity type %q", shared.ErrValidation, entity)
	}
}

// ComputeInvoiceTax derives VAT, WHT and the net receivable for a gross
// subtotal. Pure and side-effect free; all arithmetic stays in decimals and
// each derived amount is rounded to minor units independently, so the
// identity total = sub + vat - wht holds exactly.
func ComputeInvoiceTax(subTotal decimal.Decimal, applyVAT, applyWHT bool, entity EntityType) (InvoiceTax, error) {
	if subTotal.Sign() <= 0 {
		return InvoiceTax{}, fmt.Errorf("%w: subtotal must be positive", shared.ErrValidation)
	}

	out := InvoiceTax{VAT: decimal.Zero, WHT: decimal.Zero}
	if applyVAT {
		out.VAT = money.Round(subTotal.Mul(VATRate))
	}
	if applyWHT {
		rate, err := WHTRate(entity)
		if err != nil {
			return InvoiceTax{}, err
		}
		out.WHT = money.Round(subTotal.Mul(rate))
	}
	out.TotalReceivable = subTotal.Add(out.VAT).Sub(out.WHT)
	return out, nil
}
