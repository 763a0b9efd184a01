package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/ledger"
	"github.com/Nanlep/Fiscana-sub000/internal/platform/db"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
	"github.com/Nanlep/Fiscana-sub000/internal/wallet"
)

// TxRepository exposes the operations that make up the atomic settlement
// unit. GetForUpdate locks the invoice row, so concurrent payments against
// the same invoice serialize and never read a stale amount_paid.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Invoice, error)
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	DeleteItems(ctx context.Context, invoiceID int64) error
	UpdateDraft(ctx context.Context, inv Invoice) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	InsertPayment(ctx context.Context, p PaymentRecord) error
	UpdateSettlement(ctx context.Context, id int64, amountPaid decimal.Decimal, status Status, paidDate *time.Time) error
	DeleteInvoice(ctx context.Context, id int64) error
	InsertLedgerEntry(ctx context.Context, e ledger.Entry) (int64, error)
	CreditWallet(ctx context.Context, userID int64, currency string, amount decimal.Decimal, merchantRef string) error
}

// Repository provides PostgreSQL backed invoice persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error)
	ListUnpaidDueBefore(ctx context.Context, cutoff time.Time) ([]Invoice, error)
	GenerateNumber(ctx context.Context, issueDate time.Time) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const invoiceColumns = `id, number, user_id, client_name, client_email, entity_type, issue_date, due_date, currency,
	sub_total, vat_amount, wht_deduction, total_amount, amount_paid, apply_vat, apply_wht,
	fx_rate_snapshot, channels, status, paid_date, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
	if err != nil {
		return Invoice{}, err
	}
	if err := loadChildren(ctx, r.pool, &inv); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *repository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	conditions := []string{"user_id = $1"}
	args := []any{req.UserID}
	argPos := 2

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.From != nil {
		conditions = append(conditions, fmt.Sprintf("issue_date >= $%d", argPos))
		args = append(args, *req.From)
		argPos++
	}
	if req.To != nil {
		conditions = append(conditions, fmt.Sprintf("issue_date < $%d", argPos))
		args = append(args, *req.To)
		argPos++
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE `
	for i, cond := range conditions {
		if i > 0 {
			query += " AND "
		}
		query += cond
	}
	query += " ORDER BY issue_date DESC, id DESC"
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", req.Limit, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *repository) ListUnpaidDueBefore(ctx context.Context, cutoff time.Time) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE status IN ('SENT','PARTIALLY_PAID') AND due_date < $1
		ORDER BY due_date`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *repository) GenerateNumber(ctx context.Context, issueDate time.Time) (string, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%s-%05d", issueDate.Format("200601"), seq), nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Invoice{}, err
	}
	if err := loadChildren(ctx, t.tx, &inv); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoices (number, user_id, client_name, client_email, entity_type, issue_date, due_date,
			currency, sub_total, vat_amount, wht_deduction, total_amount, amount_paid, apply_vat, apply_wht,
			fx_rate_snapshot, channels, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,NOW(),NOW())
		RETURNING id`,
		inv.Number, inv.UserID, inv.ClientName, inv.ClientEmail, inv.EntityType, inv.IssueDate, inv.DueDate,
		inv.Currency, inv.SubTotal, inv.VATAmount, inv.WHTDeduction, inv.TotalAmount, inv.AmountPaid,
		inv.ApplyVAT, inv.ApplyWHT, inv.FXRateSnapshot, inv.Channels, inv.Status,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoice_items (invoice_id, description, quantity, unit_price, line_total)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		item.InvoiceID, item.Description, item.Quantity, item.UnitPrice, item.LineTotal,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (t *txRepo) DeleteItems(ctx context.Context, invoiceID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id=$1`, invoiceID)
	return err
}

func (t *txRepo) UpdateDraft(ctx context.Context, inv Invoice) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE invoices SET client_name=$1, client_email=$2, due_date=$3, apply_vat=$4, apply_wht=$5,
			sub_total=$6, vat_amount=$7, wht_deduction=$8, total_amount=$9, channels=$10, updated_at=NOW()
		WHERE id=$11 AND status='DRAFT'`,
		inv.ClientName, inv.ClientEmail, inv.DueDate, inv.ApplyVAT, inv.ApplyWHT,
		inv.SubTotal, inv.VATAmount, inv.WHTDeduction, inv.TotalAmount, inv.Channels, inv.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE invoices SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, p PaymentRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO invoice_payments (id, invoice_id, paid_at, amount, note, ledger_entry_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())`,
		p.ID, p.InvoiceID, p.Date, p.Amount, p.Note, p.LedgerEntryID)
	return err
}

func (t *txRepo) UpdateSettlement(ctx context.Context, id int64, amountPaid decimal.Decimal, status Status, paidDate *time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE invoices SET amount_paid=$1, status=$2, paid_date=COALESCE($3, paid_date), updated_at=NOW()
		WHERE id=$4`, amountPaid, status, paidDate, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteInvoice(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id=$1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM invoices WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertLedgerEntry(ctx context.Context, e ledger.Entry) (int64, error) {
	return ledger.InsertTx(ctx, t.tx, e)
}

func (t *txRepo) CreditWallet(ctx context.Context, userID int64, currency string, amount decimal.Decimal, merchantRef string) error {
	_, err := wallet.CreditTx(ctx, t.tx, userID, currency, amount, merchantRef)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.UserID, &inv.ClientName, &inv.ClientEmail, &inv.EntityType,
		&inv.IssueDate, &inv.DueDate, &inv.Currency, &inv.SubTotal, &inv.VATAmount, &inv.WHTDeduction,
		&inv.TotalAmount, &inv.AmountPaid, &inv.ApplyVAT, &inv.ApplyWHT, &inv.FXRateSnapshot,
		&inv.Channels, &inv.Status, &inv.PaidDate, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadChildren(ctx context.Context, q querier, inv *Invoice) error {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, line_total
		FROM invoice_items WHERE invoice_id=$1 ORDER BY id`, inv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return err
		}
		inv.Items = append(inv.Items, item)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	payRows, err := q.Query(ctx, `
		SELECT id, invoice_id, paid_at, amount, note, ledger_entry_id, created_at
		FROM invoice_payments WHERE invoice_id=$1 ORDER BY paid_at, created_at`, inv.ID)
	if err != nil {
		return err
	}
	defer payRows.Close()
	for payRows.Next() {
		var p PaymentRecord
		if err := payRows.Scan(&p.ID, &p.InvoiceID, &p.Date, &p.Amount, &p.Note, &p.LedgerEntryID, &p.CreatedAt); err != nil {
			return err
		}
		inv.Payments = append(inv.Payments, p)
	}
	return payRows.Err()
}
