package budget

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

// Repository provides budget persistence and the ledger aggregate the
// variance engine reads.
type Repository interface {
	Insert(ctx context.Context, b Budget) (Budget, error)
	List(ctx context.Context, userID int64) ([]Budget, error)
	Get(ctx context.Context, id int64) (Budget, error)
	Delete(ctx context.Context, id int64) error
	SpentByCurrency(ctx context.Context, b Budget, from, to time.Time) ([]CurrencyAmount, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Insert(ctx context.Context, b Budget) (Budget, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO budgets (user_id, category, limit_amount, currency, scope, period, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		RETURNING id, created_at`,
		b.UserID, b.Category, b.Limit, b.Currency, b.Scope, b.Period,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return Budget{}, err
	}
	return b, nil
}

func (r *repository) List(ctx context.Context, userID int64) ([]Budget, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, category, limit_amount, currency, scope, period, created_at
		FROM budgets WHERE user_id=$1 ORDER BY category`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.Category, &b.Limit, &b.Currency, &b.Scope, &b.Period, &b.CreatedAt); err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Budget, error) {
	var b Budget
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, category, limit_amount, currency, scope, period, created_at
		FROM budgets WHERE id=$1`, id,
	).Scan(&b.ID, &b.UserID, &b.Category, &b.Limit, &b.Currency, &b.Scope, &b.Period, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, shared.ErrNotFound
		}
		return Budget{}, err
	}
	return b, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM budgets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SpentByCurrency sums cleared expense entries matching the budget's
// category and scope within [from, to), grouped by currency. Pending and
// voided entries stay out of variance, matching the statement convention.
func (r *repository) SpentByCurrency(ctx context.Context, b Budget, from, to time.Time) ([]CurrencyAmount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT currency, COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE user_id=$1 AND kind='EXPENSE' AND classification=$2 AND category=$3
		  AND status = 'CLEARED' AND entry_date >= $4 AND entry_date < $5
		GROUP BY currency`,
		b.UserID, b.Scope, b.Category, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spent []CurrencyAmount
	for rows.Next() {
		var s CurrencyAmount
		if err := rows.Scan(&s.Currency, &s.Amount); err != nil {
			return nil, err
		}
		spent = append(spent, s)
	}
	return spent, rows.Err()
}
