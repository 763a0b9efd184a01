package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

// TxRepository exposes the wallet operations that must run inside one
// transaction. GetForUpdate takes a row lock, so concurrent credits and
// debits against the same wallet serialize on the database.
type TxRepository interface {
	GetForUpdate(ctx context.Context, userID int64, currency string) (Balance, error)
	InsertCreditKey(ctx context.Context, walletID int64, merchantRef string, amount decimal.Decimal) (bool, error)
	GetCreditKey(ctx context.Context, walletID int64, merchantRef string) (decimal.Decimal, error)
	AddAvailable(ctx context.Context, walletID int64, delta decimal.Decimal) (decimal.Decimal, error)
	DebitAvailable(ctx context.Context, walletID int64, amount decimal.Decimal) (decimal.Decimal, error)
}

// Repository provides PostgreSQL backed wallet persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListBalances(ctx context.Context, userID int64) ([]Balance, error)
	CleanupCreditKeys(ctx context.Context, olderThan time.Duration) (int64, error)
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

// WithTx wraps the callback in a read-committed transaction. Credits
// serialize on the wallet row lock, and a waiter re-reads the committed
// balance once the lock holder finishes rather than failing with 40001.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) ListBalances(ctx context.Context, userID int64) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, currency, available, pending, updated_at
		FROM wallets WHERE user_id=$1 ORDER BY currency`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.ID, &b.UserID, &b.Currency, &b.Available, &b.Pending, &b.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// CleanupCreditKeys removes consumed funding references older than the
// retention window. The window must comfortably exceed the provider's
// redelivery horizon.
func (r *repository) CleanupCreditKeys(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := r.pool.Exec(ctx, `DELETE FROM wallet_credits WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetForUpdate upserts the wallet row and locks it for the transaction.
func (t *txRepo) GetForUpdate(ctx context.Context, userID int64, currency string) (Balance, error) {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO wallets (user_id, currency, available, pending, updated_at)
		VALUES ($1, $2, 0, 0, NOW())
		ON CONFLICT (user_id, currency) DO NOTHING`, userID, currency)
	if err != nil {
		return Balance{}, err
	}
	var b Balance
	err = t.tx.QueryRow(ctx, `
		SELECT id, user_id, currency, available, pending, updated_at
		FROM wallets WHERE user_id=$1 AND currency=$2 FOR UPDATE`, userID, currency).
		Scan(&b.ID, &b.UserID, &b.Currency, &b.Available, &b.Pending, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, shared.ErrNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

// InsertCreditKey records a funding reference. Returns false when the
// reference was already consumed; the unique constraint is the authority,
// not an application-level existence check.
func (t *txRepo) InsertCreditKey(ctx context.Context, walletID int64, merchantRef string, amount decimal.Decimal) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO wallet_credits (wallet_id, merchant_ref, amount, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (wallet_id, merchant_ref) DO NOTHING`, walletID, merchantRef, amount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepo) GetCreditKey(ctx context.Context, walletID int64, merchantRef string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		SELECT amount FROM wallet_credits WHERE wallet_id=$1 AND merchant_ref=$2`, walletID, merchantRef).
		Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, shared.ErrNotFound
		}
		return decimal.Decimal{}, err
	}
	return amount, nil
}

func (t *txRepo) AddAvailable(ctx context.Context, walletID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var available decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		UPDATE wallets SET available = available + $1, updated_at = NOW()
		WHERE id=$2 RETURNING available`, delta, walletID).
		Scan(&available)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return available, nil
}

// DebitAvailable decrements conditionally; the WHERE clause is the
// non-negative invariant, enforced even if a caller skipped the balance check.
func (t *txRepo) DebitAvailable(ctx context.Context, walletID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var available decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		UPDATE wallets SET available = available - $1, updated_at = NOW()
		WHERE id=$2 AND available >= $1 RETURNING available`, amount, walletID).
		Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, shared.ErrInsufficientFunds
		}
		return decimal.Decimal{}, err
	}
	return available, nil
}
