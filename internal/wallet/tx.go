package wallet

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CreditTx applies an idempotent credit on a caller-owned transaction. The
// invoice module uses it so payment recognition and the wallet credit commit
// or roll back together. Semantics match Service.Credit: a consumed
// reference is a no-op success.
func CreditTx(ctx context.Context, tx pgx.Tx, userID int64, currency string, amount decimal.Decimal, merchantRef string) (applied bool, err error) {
	repo := &txRepo{tx: tx}
	w, err := repo.GetForUpdate(ctx, userID, currency)
	if err != nil {
		return false, err
	}
	inserted, err := repo.InsertCreditKey(ctx, w.ID, merchantRef, amount)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}
	if _, err := repo.AddAvailable(ctx, w.ID, amount); err != nil {
		return false, err
	}
	return true, nil
}
