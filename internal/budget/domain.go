// Package budget computes spend-vs-limit variance per category and month.
// The engine is a pure read path over the ledger; it never writes.
package budget

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/ledger"
)

// Period is the budget cycle. Only monthly budgets exist today.
type Period string

const PeriodMonthly Period = "MONTHLY"

// VarianceStatus reports whether spend stayed inside the limit.
type VarianceStatus string

const (
	StatusOK   VarianceStatus = "OK"
	StatusOver VarianceStatus = "OVER"
)

// Budget is one configured spending limit.
type Budget struct {
	ID        int64                 `json:"id"`
	UserID    int64                 `json:"user_id"`
	Category  string                `json:"category"`
	Limit     decimal.Decimal       `json:"limit"`
	Currency  string                `json:"currency"`
	Scope     ledger.Classification `json:"scope"`
	Period    Period                `json:"period"`
	CreatedAt time.Time             `json:"created_at"`
}

// CurrencyAmount is spend in one currency before normalization.
type CurrencyAmount struct {
	Currency string
	Amount   decimal.Decimal
}

// VarianceReport is the computed position of one budget for one month. All
// monetary figures are normalized to the base currency at the rate in force
// when the report was computed.
type VarianceReport struct {
	Budget   Budget          `json:"budget"`
	Month    string          `json:"month"`
	Limit    decimal.Decimal `json:"limit"`
	Spent    decimal.Decimal `json:"spent"`
	Variance decimal.Decimal `json:"variance"`
	Status   VarianceStatus  `json:"status"`
	Rate     decimal.Decimal `json:"rate"`
}
