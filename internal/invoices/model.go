// Package invoices owns the invoice lifecycle and payment settlement.
package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/money"
	"github.com/Nanlep/Fiscana-sub000/internal/tax"
)

// Status is the stored invoice lifecycle state. OVERDUE is intentionally
// absent: it is derived at read time so a due date passing can never leave a
// stale stored status behind.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusSent          Status = "SENT"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	// StatusOverdue is display-only, never written to storage.
	StatusOverdue Status = "OVERDUE"
)

// ChannelKind distinguishes how the client is asked to settle.
type ChannelKind string

const (
	ChannelBankTransfer ChannelKind = "BANK_TRANSFER"
	ChannelWallet       ChannelKind = "WALLET"
)

// PaymentChannel carries the settlement details shown on the invoice.
type PaymentChannel struct {
	Kind          ChannelKind `json:"kind"`
	BankName      string      `json:"bank_name,omitempty"`
	AccountNumber string      `json:"account_number,omitempty"`
	AccountName   string      `json:"account_name,omitempty"`
	WalletAddress string      `json:"wallet_address,omitempty"`
}

// Item is one invoice line.
type Item struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// PaymentRecord is one settlement applied against an invoice.
type PaymentRecord struct {
	ID            string          `json:"id"`
	InvoiceID     int64           `json:"invoice_id"`
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Note          *string         `json:"note,omitempty"`
	LedgerEntryID int64           `json:"ledger_entry_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Invoice is the settlement aggregate. amount_paid is stored alongside the
// payment rows and must always equal their sum; tests reconcile the two.
type Invoice struct {
	ID             int64            `json:"id"`
	Number         string           `json:"number"`
	UserID         int64            `json:"user_id"`
	ClientName     string           `json:"client_name"`
	ClientEmail    string           `json:"client_email"`
	EntityType     tax.EntityType   `json:"entity_type"`
	IssueDate      time.Time        `json:"issue_date"`
	DueDate        time.Time        `json:"due_date"`
	Currency       string           `json:"currency"`
	Items          []Item           `json:"items,omitempty"`
	SubTotal       decimal.Decimal  `json:"sub_total"`
	VATAmount      decimal.Decimal  `json:"vat_amount"`
	WHTDeduction   decimal.Decimal  `json:"wht_deduction"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	AmountPaid     decimal.Decimal  `json:"amount_paid"`
	ApplyVAT       bool             `json:"apply_vat"`
	ApplyWHT       bool             `json:"apply_wht"`
	FXRateSnapshot *decimal.Decimal `json:"fx_rate_snapshot,omitempty"`
	Channels       []PaymentChannel `json:"channels,omitempty"`
	Payments       []PaymentRecord  `json:"payments,omitempty"`
	Status         Status           `json:"status"`
	PaidDate       *time.Time       `json:"paid_date,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Balance is the outstanding amount.
func (i *Invoice) Balance() decimal.Decimal {
	return i.TotalAmount.Sub(i.AmountPaid)
}

// settledStatus derives the stored status from payment progress. Status is a
// pure function of amountPaid vs totalAmount once an invoice has been sent.
func settledStatus(amountPaid, totalAmount decimal.Decimal) Status {
	if amountPaid.GreaterThanOrEqual(totalAmount) {
		return StatusPaid
	}
	if amountPaid.Sign() > 0 {
		return StatusPartiallyPaid
	}
	return StatusSent
}

// DisplayStatus overlays OVERDUE for presentation. Every unpaid invoice
// past its due date shows as overdue, drafts included.
func (i *Invoice) DisplayStatus(now time.Time) Status {
	if i.Status != StatusPaid && i.DueDate.Before(now) {
		return StatusOverdue
	}
	return i.Status
}

// withinTolerance reports whether a payment keeps amountPaid within
// totalAmount plus the one-minor-unit reconciliation epsilon.
func withinTolerance(amount, balance decimal.Decimal) bool {
	return amount.LessThanOrEqual(balance.Add(money.Epsilon))
}
