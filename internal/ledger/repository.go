package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

// Filter narrows entry listings.
type Filter struct {
	UserID         int64
	Kind           *Kind
	Classification *Classification
	Category       *string
	Status         *Status
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

// CurrencyTotal is an aggregate bucket before normalization.
type CurrencyTotal struct {
	Kind     Kind
	Currency string
	Amount   decimal.Decimal
}

// Repository provides PostgreSQL backed persistence for ledger entries.
type Repository interface {
	Insert(ctx context.Context, entry Entry) (int64, error)
	Get(ctx context.Context, id int64) (Entry, error)
	List(ctx context.Context, filter Filter) ([]Entry, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Totals(ctx context.Context, userID int64, from, to time.Time) ([]CurrencyTotal, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const entryColumns = `id, user_id, entry_date, description, amount, gross_amount, currency, kind, classification,
	category, tax_tag, tags, receipt_ref, vat_amount, wht_amount, tax_remitted, invoice_id, origin, created_by, created_at, status`

func (r *repository) Insert(ctx context.Context, e Entry) (int64, error) {
	return insertEntry(ctx, r.pool, e)
}

// InsertTx appends an entry on an existing transaction. The invoice module
// uses it so payment recognition and the entry land atomically.
func InsertTx(ctx context.Context, tx pgx.Tx, e Entry) (int64, error) {
	return insertEntry(ctx, tx, e)
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertEntry(ctx context.Context, q execQuerier, e Entry) (int64, error) {
	var vat, wht *decimal.Decimal
	var remitted *bool
	if e.TaxDetail != nil {
		vat, wht, remitted = &e.TaxDetail.VATAmount, &e.TaxDetail.WHTAmount, &e.TaxDetail.Remitted
	}
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO ledger_entries (user_id, entry_date, description, amount, gross_amount, currency, kind,
			classification, category, tax_tag, tags, receipt_ref, vat_amount, wht_amount, tax_remitted,
			invoice_id, origin, created_by, created_at, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,NOW(),$19)
		RETURNING id`,
		e.UserID, e.Date, e.Description, e.Amount, e.GrossAmount, e.Currency, e.Kind,
		e.Classification, e.Category, e.TaxTag, e.Tags, e.ReceiptRef, vat, wht, remitted,
		e.InvoiceID, e.Origin, e.CreatedBy, e.Status,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id=$1`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, shared.ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *repository) List(ctx context.Context, f Filter) ([]Entry, error) {
	conditions := []string{"user_id = $1"}
	args := []any{f.UserID}
	argPos := 2

	appendCond := func(cond string, val any) {
		conditions = append(conditions, fmt.Sprintf(cond, argPos))
		args = append(args, val)
		argPos++
	}
	if f.Kind != nil {
		appendCond("kind = $%d", *f.Kind)
	}
	if f.Classification != nil {
		appendCond("classification = $%d", *f.Classification)
	}
	if f.Category != nil {
		appendCond("category = $%d", *f.Category)
	}
	if f.Status != nil {
		appendCond("status = $%d", *f.Status)
	}
	if f.From != nil {
		appendCond("entry_date >= $%d", *f.From)
	}
	if f.To != nil {
		appendCond("entry_date < $%d", *f.To)
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE `
	for i, cond := range conditions {
		if i > 0 {
			query += " AND "
		}
		query += cond
	}
	query += " ORDER BY entry_date DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ledger_entries SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Totals(ctx context.Context, userID int64, from, to time.Time) ([]CurrencyTotal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT kind, currency, COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE user_id=$1 AND status='CLEARED' AND entry_date >= $2 AND entry_date < $3
		GROUP BY kind, currency`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []CurrencyTotal
	for rows.Next() {
		var t CurrencyTotal
		if err := rows.Scan(&t.Kind, &t.Currency, &t.Amount); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var vat, wht *decimal.Decimal
	var remitted *bool
	err := row.Scan(&e.ID, &e.UserID, &e.Date, &e.Description, &e.Amount, &e.GrossAmount, &e.Currency,
		&e.Kind, &e.Classification, &e.Category, &e.TaxTag, &e.Tags, &e.ReceiptRef,
		&vat, &wht, &remitted, &e.InvoiceID, &e.Origin, &e.CreatedBy, &e.CreatedAt, &e.Status)
	if err != nil {
		return Entry{}, err
	}
	if vat != nil || wht != nil {
		detail := TaxDetail{}
		if vat != nil {
			detail.VATAmount = *vat
		}
		if wht != nil {
			detail.WHTAmount = *wht
		}
		if remitted != nil {
			detail.Remitted = *remitted
		}
		e.TaxDetail = &detail
	}
	return e, nil
}
