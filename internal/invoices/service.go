package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/fx"
	"github.com/Nanlep/Fiscana-sub000/internal/ledger"
	"github.com/Nanlep/Fiscana-sub000/internal/money"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
	"github.com/Nanlep/Fiscana-sub000/internal/tax"
)

// Service drives the invoice lifecycle. All settlement effects run inside
// one repository transaction so a payment is either fully recognized or not
// observable at all.
type Service struct {
	repo   Repository
	fx     *fx.Service
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs the service. fx may be nil, which skips rate
// snapshots on foreign-currency invoices.
func NewService(repo Repository, fxService *fx.Service, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, fx: fxService, audit: audit, logger: logger}
}

func parseItems(reqs []CreateInvoiceItemReq) ([]Item, decimal.Decimal, error) {
	if len(reqs) == 0 {
		return nil, decimal.Decimal{}, fmt.Errorf("%w: at least one item required", shared.ErrValidation)
	}
	items := make([]Item, 0, len(reqs))
	subTotal := decimal.Zero
	for i, req := range reqs {
		price, err := decimal.NewFromString(req.UnitPrice)
		if err != nil {
			return nil, decimal.Decimal{}, fmt.Errorf("%w: item %d unit price: %v", shared.ErrValidation, i+1, err)
		}
		if price.Sign() <= 0 {
			return nil, decimal.Decimal{}, fmt.Errorf("%w: item %d unit price must be positive", shared.ErrValidation, i+1)
		}
		if req.Quantity < 1 {
			return nil, decimal.Decimal{}, fmt.Errorf("%w: item %d quantity must be at least 1", shared.ErrValidation, i+1)
		}
		lineTotal := money.Round(price.Mul(decimal.NewFromInt(req.Quantity)))
		items = append(items, Item{
			Description: req.Description,
			Quantity:    req.Quantity,
			UnitPrice:   price,
			LineTotal:   lineTotal,
		})
		subTotal = subTotal.Add(lineTotal)
	}
	return items, subTotal, nil
}

// Create builds a DRAFT invoice with derived tax amounts and, for foreign
// currency invoices, a snapshot of the rate in force at creation.
func (s *Service) Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error) {
	items, subTotal, err := parseItems(req.Items)
	if err != nil {
		return Invoice{}, err
	}
	taxes, err := tax.ComputeInvoiceTax(subTotal, req.ApplyVAT, req.ApplyWHT, tax.EntityType(req.EntityType))
	if err != nil {
		return Invoice{}, err
	}
	if req.DueDate.Before(req.IssueDate) {
		return Invoice{}, fmt.Errorf("%w: due date before issue date", shared.ErrValidation)
	}

	number, err := s.repo.GenerateNumber(ctx, req.IssueDate)
	if err != nil {
		return Invoice{}, fmt.Errorf("generate invoice number: %w", err)
	}

	inv := Invoice{
		Number:       number,
		UserID:       req.UserID,
		ClientName:   req.ClientName,
		ClientEmail:  req.ClientEmail,
		EntityType:   tax.EntityType(req.EntityType),
		IssueDate:    req.IssueDate,
		DueDate:      req.DueDate,
		Currency:     req.Currency,
		SubTotal:     subTotal,
		VATAmount:    taxes.VAT,
		WHTDeduction: taxes.WHT,
		TotalAmount:  taxes.TotalReceivable,
		AmountPaid:   decimal.Zero,
		ApplyVAT:     req.ApplyVAT,
		ApplyWHT:     req.ApplyWHT,
		Channels:     req.Channels,
		Status:       StatusDraft,
	}
	if req.Currency != fx.BaseCurrency && s.fx != nil {
		if rate, err := s.fx.Current(ctx); err == nil {
			inv.FXRateSnapshot = &rate
		} else if s.logger != nil {
			s.logger.Warn("fx snapshot unavailable", slog.Any("error", err))
		}
	}

	var invoiceID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		invoiceID = id
		for _, item := range items {
			item.InvoiceID = id
			if _, err := tx.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.recordAudit(ctx, req.UserID, "invoice.create", invoiceID, map[string]any{
		"number": number, "total": inv.TotalAmount.String(), "currency": inv.Currency,
	})
	return s.repo.Get(ctx, invoiceID)
}

// Get returns one invoice with items and payments.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns invoices matching the filter.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	if req.Limit == 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

// Update edits a DRAFT invoice and recomputes its derived amounts. Invoices
// become append-only once sent.
func (s *Service) Update(ctx context.Context, id int64, req UpdateInvoiceRequest) (Invoice, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return fmt.Errorf("%w: only DRAFT invoices can be edited", shared.ErrInvalidTransition)
		}

		if req.ClientName != nil {
			inv.ClientName = *req.ClientName
		}
		if req.ClientEmail != nil {
			inv.ClientEmail = *req.ClientEmail
		}
		if req.DueDate != nil {
			inv.DueDate = *req.DueDate
		}
		if req.ApplyVAT != nil {
			inv.ApplyVAT = *req.ApplyVAT
		}
		if req.ApplyWHT != nil {
			inv.ApplyWHT = *req.ApplyWHT
		}
		if req.Channels != nil {
			inv.Channels = *req.Channels
		}

		items := inv.Items
		subTotal := inv.SubTotal
		if req.Items != nil {
			items, subTotal, err = parseItems(*req.Items)
			if err != nil {
				return err
			}
		}
		taxes, err := tax.ComputeInvoiceTax(subTotal, inv.ApplyVAT, inv.ApplyWHT, inv.EntityType)
		if err != nil {
			return err
		}
		inv.SubTotal = subTotal
		inv.VATAmount = taxes.VAT
		inv.WHTDeduction = taxes.WHT
		inv.TotalAmount = taxes.TotalReceivable

		if err := tx.UpdateDraft(ctx, inv); err != nil {
			return err
		}
		if req.Items != nil {
			if err := tx.DeleteItems(ctx, id); err != nil {
				return err
			}
			for _, item := range items {
				item.InvoiceID = id
				if _, err := tx.InsertItem(ctx, item); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return s.repo.Get(ctx, id)
}

// Send transitions DRAFT to SENT.
func (s *Service) Send(ctx context.Context, id int64, actorID int64) (Invoice, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return fmt.Errorf("%w: invoice is %s, not DRAFT", shared.ErrInvalidTransition, inv.Status)
		}
		return tx.UpdateStatus(ctx, id, StatusSent)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, actorID, "invoice.send", id, nil)
	return s.repo.Get(ctx, id)
}

// RecordPayment applies one payment as a single atomic unit: the payment
// row, the amount_paid/status update, the income ledger entry and the wallet
// credit commit together or not at all.
func (s *Service) RecordPayment(ctx context.Context, id int64, req RecordPaymentRequest) (Invoice, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return Invoice{}, fmt.Errorf("%w: amount must be a decimal string", shared.ErrValidation)
	}
	if amount.Sign() <= 0 {
		return Invoice{}, fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
	}
	paidAt := time.Now()
	if req.Date != nil {
		paidAt = *req.Date
	}

	var result Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch inv.Status {
		case StatusSent, StatusPartiallyPaid:
		case StatusPaid:
			// A settled invoice has a zero balance, so any further amount
			// fails the same overshoot check a late overpayment would.
			return fmt.Errorf("%w: payment %s exceeds balance %s", shared.ErrInvalidAmount, amount, inv.Balance())
		default:
			return fmt.Errorf("%w: cannot record payment on %s invoice", shared.ErrInvalidTransition, inv.Status)
		}
		balance := inv.Balance()
		if !withinTolerance(amount, balance) {
			return fmt.Errorf("%w: payment %s exceeds balance %s", shared.ErrInvalidAmount, amount, balance)
		}

		payment := PaymentRecord{
			ID:        uuid.NewString(),
			InvoiceID: id,
			Date:      paidAt,
			Amount:    amount,
			Note:      req.Note,
		}

		entryID, err := tx.InsertLedgerEntry(ctx, ledger.Entry{
			UserID:         inv.UserID,
			Date:           paidAt,
			Description:    fmt.Sprintf("Payment received for invoice %s", inv.Number),
			Amount:         amount,
			Currency:       inv.Currency,
			Kind:           ledger.KindIncome,
			Classification: ledger.ClassBusiness,
			Category:       "Invoice Payment",
			InvoiceID:      &inv.ID,
			Origin:         ledger.OriginInvoiceGenerated,
			CreatedBy:      inv.UserID,
			Status:         ledger.StatusCleared,
			TaxDetail: &ledger.TaxDetail{
				VATAmount: inv.VATAmount,
				WHTAmount: inv.WHTDeduction,
			},
		})
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
		payment.LedgerEntryID = entryID

		if err := tx.InsertPayment(ctx, payment); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		newPaid := inv.AmountPaid.Add(amount)
		newStatus := settledStatus(newPaid, inv.TotalAmount)
		var paidDate *time.Time
		if newStatus == StatusPaid {
			paidDate = &paidAt
		}
		if err := tx.UpdateSettlement(ctx, id, newPaid, newStatus, paidDate); err != nil {
			return fmt.Errorf("update settlement: %w", err)
		}

		if err := tx.CreditWallet(ctx, inv.UserID, inv.Currency, amount, "invpay:"+payment.ID); err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	result, err = s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, result.UserID, "invoice.payment", id, map[string]any{
		"amount": amount.String(), "status": string(result.Status),
	})
	return result, nil
}

// Delete removes a DRAFT invoice. Sent invoices stay on the books.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return fmt.Errorf("%w: only DRAFT invoices can be deleted", shared.ErrValidation)
		}
		return tx.DeleteInvoice(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "invoice.delete", id, nil)
	return nil
}

// Overdue lists sent invoices past their due date; the overdue scan job uses
// it to emit reminders without ever storing the derived state.
func (s *Service) Overdue(ctx context.Context, now time.Time) ([]Invoice, error) {
	invoices, err := s.repo.ListUnpaidDueBefore(ctx, now)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Status = invoices[i].DisplayStatus(now)
	}
	return invoices, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, invoiceID int64, meta map[string]any) {
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(invoiceID, 10),
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit invoice", slog.String("action", action), slog.Any("error", err))
	}
}
