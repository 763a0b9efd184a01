package fx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

// RateRecord is the single admin-settable exchange rate row.
type RateRecord struct {
	Rate      decimal.Decimal
	UpdatedBy int64
	UpdatedAt time.Time
}

// Repository persists the current exchange rate.
type Repository interface {
	Current(ctx context.Context) (RateRecord, error)
	Set(ctx context.Context, rate decimal.Decimal, actorID int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Current(ctx context.Context) (RateRecord, error) {
	var rec RateRecord
	err := r.pool.QueryRow(ctx, `SELECT rate, updated_by, updated_at FROM fx_rates WHERE id = TRUE`).
		Scan(&rec.Rate, &rec.UpdatedBy, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RateRecord{}, shared.ErrNotFound
		}
		return RateRecord{}, err
	}
	return rec, nil
}

func (r *repository) Set(ctx context.Context, rate decimal.Decimal, actorID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO fx_rates (id, rate, updated_by, updated_at)
		VALUES (TRUE, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET rate = EXCLUDED.rate, updated_by = EXCLUDED.updated_by, updated_at = NOW()`,
		rate, actorID)
	return err
}
