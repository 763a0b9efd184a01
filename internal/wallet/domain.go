// Package wallet owns per-user, per-currency balances. Balances change only
// through Credit, Debit and Withdraw; available never goes negative and a
// funding reference is applied at most once.
package wallet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Balance is one (user, currency) wallet row.
type Balance struct {
	ID        int64           `json:"-"`
	UserID    int64           `json:"user_id"`
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CreditResult reports the outcome of applying a funding reference. On
// redelivery the original application's amount is returned with
// AlreadyApplied set; that is a success, not an error.
type CreditResult struct {
	MerchantRef    string          `json:"merchant_ref"`
	Amount         decimal.Decimal `json:"amount"`
	Available      decimal.Decimal `json:"available"`
	AlreadyApplied bool            `json:"already_applied"`
}

// WithdrawInput describes a payout request against a wallet.
type WithdrawInput struct {
	UserID        int64
	Currency      string
	Amount        decimal.Decimal
	AccountNumber string
	BankCode      string
	Narration     string
}

// WithdrawResult reports the committed withdrawal.
type WithdrawResult struct {
	Reference   string          `json:"reference"`
	AccountName string          `json:"account_name"`
	Available   decimal.Decimal `json:"available"`
}

// PayoutRequest is handed to the external rail.
type PayoutRequest struct {
	Amount        decimal.Decimal
	Currency      string
	AccountNumber string
	BankCode      string
	Narration     string
}

// PayoutResult is the rail's acknowledgement.
type PayoutResult struct {
	Reference string
	Status    string
}

// PayoutRail is the external settlement collaborator. Implementations must
// surface initiation failures as errors so the debit never commits.
type PayoutRail interface {
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (string, error)
	InitiatePayout(ctx context.Context, req PayoutRequest) (PayoutResult, error)
}
