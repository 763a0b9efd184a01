package ledger

import (
	"context"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/Nanlep/Fiscana-sub000/internal/fx"
)

// StatementLine is one display row of a monthly statement.
type StatementLine struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Kind        Kind      `json:"kind"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
}

// Statement is the rendered monthly view handed to the route layer.
type Statement struct {
	Month   time.Time       `json:"month"`
	Lines   []StatementLine `json:"lines"`
	Income  string          `json:"income"`
	Expense string          `json:"expense"`
	Net     string          `json:"net"`
}

var statementPrinter = message.NewPrinter(language.English)

// Statement renders the month's cleared entries with locale-aware amounts.
func (s *Service) Statement(ctx context.Context, userID int64, month time.Time) (Statement, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	status := StatusCleared

	entries, err := s.repo.List(ctx, Filter{UserID: userID, Status: &status, From: &from, To: &to})
	if err != nil {
		return Statement{}, err
	}
	summary, err := s.Summarize(ctx, userID, month)
	if err != nil {
		return Statement{}, err
	}

	out := Statement{Month: from}
	for _, e := range entries {
		out.Lines = append(out.Lines, StatementLine{
			Date:        e.Date,
			Description: e.Description,
			Kind:        e.Kind,
			Amount:      formatGrouped(e.Amount.InexactFloat64()),
			Currency:    e.Currency,
		})
	}
	out.Income = fx.BaseCurrency + " " + formatGrouped(summary.Income.InexactFloat64())
	out.Expense = fx.BaseCurrency + " " + formatGrouped(summary.Expense.InexactFloat64())
	out.Net = fx.BaseCurrency + " " + formatGrouped(summary.Net.InexactFloat64())
	return out, nil
}

// formatGrouped is display-only: grouping separators and two fraction digits.
func formatGrouped(v float64) string {
	return statementPrinter.Sprintf("%v", number.Decimal(v,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
