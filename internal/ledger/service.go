package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/fx"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

// Service owns ledger entry creation, voiding and reporting.
type Service struct {
	repo   Repository
	fx     *fx.Service
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs the service.
func NewService(repo Repository, fxService *fx.Service, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, fx: fxService, audit: audit, logger: logger}
}

// Create validates and appends a new entry. Manual entries default to CLEARED.
func (s *Service) Create(ctx context.Context, e Entry) (Entry, error) {
	if e.Status == "" {
		e.Status = StatusCleared
	}
	if e.Origin == "" {
		e.Origin = OriginManual
	}
	if e.Date.IsZero() {
		e.Date = time.Now()
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}

	id, err := s.repo.Insert(ctx, e)
	if err != nil {
		return Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	e.ID = id

	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  e.CreatedBy,
		Action:   "ledger.entry.create",
		Entity:   "ledger_entry",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"kind": string(e.Kind), "amount": e.Amount.String(), "currency": e.Currency},
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit entry create", slog.Any("error", err))
	}
	return e, nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	return s.repo.Get(ctx, id)
}

// List returns entries matching the filter.
func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.UserID == 0 {
		return nil, fmt.Errorf("%w: user required", shared.ErrValidation)
	}
	return s.repo.List(ctx, f)
}

// Void transitions an entry to VOID. Entries generated by invoice payments
// stay on the books; voiding them would break payment reconciliation.
func (s *Service) Void(ctx context.Context, id int64, actorID int64) error {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if entry.Status == StatusVoid {
		return fmt.Errorf("%w: entry already void", shared.ErrInvalidTransition)
	}
	if entry.InvoiceID != nil {
		return fmt.Errorf("%w: entry is referenced by an invoice payment", shared.ErrInvalidTransition)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusVoid); err != nil {
		return err
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "ledger.entry.void",
		Entity:   "ledger_entry",
		EntityID: strconv.FormatInt(id, 10),
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit entry void", slog.Any("error", err))
	}
	return nil
}

// MonthSummary aggregates cleared income and expense for one calendar month,
// normalized to the base currency at the current rate.
type MonthSummary struct {
	Month   time.Time       `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// Summarize computes the month summary for a user. Normalization uses the
// rate in force at query time, so re-running after a rate change re-prices
// the whole month.
func (s *Service) Summarize(ctx context.Context, userID int64, month time.Time) (MonthSummary, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	totals, err := s.repo.Totals(ctx, userID, from, to)
	if err != nil {
		return MonthSummary{}, err
	}

	summary := MonthSummary{Month: from, Income: decimal.Zero, Expense: decimal.Zero}
	for _, t := range totals {
		normalized, err := s.fx.NormalizeCurrent(ctx, t.Amount, t.Currency)
		if err != nil {
			return MonthSummary{}, err
		}
		switch t.Kind {
		case KindIncome:
			summary.Income = summary.Income.Add(normalized)
		case KindExpense:
			summary.Expense = summary.Expense.Add(normalized)
		}
	}
	summary.Net = summary.Income.Sub(summary.Expense)
	return summary, nil
}
