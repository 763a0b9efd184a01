// Package ledger stores immutable records of monetary movement. Entries are
// only ever appended; the single permitted mutation is a status transition
// to VOID, and entries referenced by invoice payments cannot even do that.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

// Kind gives an entry its direction; amounts themselves are magnitudes.
type Kind string

const (
	KindIncome  Kind = "INCOME"
	KindExpense Kind = "EXPENSE"
)

// Classification separates business from personal movements.
type Classification string

const (
	ClassBusiness Classification = "BUSINESS"
	ClassPersonal Classification = "PERSONAL"
)

// Origin records how the entry came to exist.
type Origin string

const (
	OriginManual           Origin = "MANUAL"
	OriginBankImport       Origin = "BANK_IMPORT"
	OriginInvoiceGenerated Origin = "INVOICE_GENERATED"
	OriginSystem           Origin = "SYSTEM"
)

// Status is the entry lifecycle state.
type Status string

const (
	StatusCleared Status = "CLEARED"
	StatusPending Status = "PENDING"
	StatusVoid    Status = "VOID"
)

// TaxDetail carries per-entry statutory amounts when the entry originated
// from a taxed document.
type TaxDetail struct {
	VATAmount decimal.Decimal `json:"vat_amount"`
	WHTAmount decimal.Decimal `json:"wht_amount"`
	Remitted  bool            `json:"remitted"`
}

// Entry is one monetary movement.
type Entry struct {
	ID             int64            `json:"id"`
	UserID         int64            `json:"user_id"`
	Date           time.Time        `json:"date"`
	Description    string           `json:"description"`
	Amount         decimal.Decimal  `json:"amount"`
	GrossAmount    *decimal.Decimal `json:"gross_amount,omitempty"`
	Currency       string           `json:"currency"`
	Kind           Kind             `json:"kind"`
	Classification Classification   `json:"classification"`
	Category       string           `json:"category"`
	TaxTag         string           `json:"tax_tag,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	ReceiptRef     *string          `json:"receipt_ref,omitempty"`
	TaxDetail      *TaxDetail       `json:"tax_detail,omitempty"`
	InvoiceID      *int64           `json:"invoice_id,omitempty"`
	Origin         Origin           `json:"origin"`
	CreatedBy      int64            `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	Status         Status           `json:"status"`
}

// Validate enforces the entry invariants before any state change.
func (e Entry) Validate() error {
	if e.UserID == 0 {
		return fmt.Errorf("%w: user required", shared.ErrValidation)
	}
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("%w: description required", shared.ErrValidation)
	}
	if e.Amount.Sign() < 0 {
		return fmt.Errorf("%w: amount must not be negative", shared.ErrValidation)
	}
	if e.GrossAmount != nil && e.GrossAmount.LessThan(e.Amount) {
		return fmt.Errorf("%w: gross amount below net amount", shared.ErrValidation)
	}
	switch e.Kind {
	case KindIncome, KindExpense:
	default:
		return fmt.Errorf("%w: unknown kind %q", shared.ErrValidation, e.Kind)
	}
	switch e.Classification {
	case ClassBusiness, ClassPersonal:
	default:
		return fmt.Errorf("%w: unknown classification %q", shared.ErrValidation, e.Classification)
	}
	if e.Currency == "" {
		return fmt.Errorf("%w: currency required", shared.ErrValidation)
	}
	return nil
}
