// Package networth aggregates user-declared assets and liabilities into a
// single base-currency position.
package networth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/fx"
	"github.com/Nanlep/Fiscana-sub000/internal/money"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

// ItemKind separates what the user owns from what they owe.
type ItemKind string

const (
	KindAsset     ItemKind = "ASSET"
	KindLiability ItemKind = "LIABILITY"
)

// Item is one balance-sheet line.
type Item struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Kind      ItemKind        `json:"kind"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Value     decimal.Decimal `json:"value"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}

// Summary is the normalized position at the current rate.
type Summary struct {
	Assets      decimal.Decimal `json:"assets"`
	Liabilities decimal.Decimal `json:"liabilities"`
	NetWorth    decimal.Decimal `json:"net_worth"`
	Currency    string          `json:"currency"`
	AsOf        time.Time       `json:"as_of"`
}

// Repository persists balance-sheet items.
type Repository interface {
	Insert(ctx context.Context, item Item) (Item, error)
	List(ctx context.Context, userID int64) ([]Item, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Insert(ctx context.Context, item Item) (Item, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO networth_items (user_id, kind, name, category, value, currency, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		RETURNING id, created_at`,
		item.UserID, item.Kind, item.Name, item.Category, item.Value, item.Currency,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

func (r *repository) List(ctx context.Context, userID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, kind, name, category, value, currency, created_at
		FROM networth_items WHERE user_id=$1 ORDER BY kind, name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.UserID, &item.Kind, &item.Name, &item.Category, &item.Value, &item.Currency, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM networth_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Service computes the normalized net-worth position.
type Service struct {
	repo Repository
	fx   *fx.Service
}

// NewService constructs the service.
func NewService(repo Repository, fxService *fx.Service) *Service {
	return &Service{repo: repo, fx: fxService}
}

// Add validates and stores one balance-sheet item.
func (s *Service) Add(ctx context.Context, item Item) (Item, error) {
	if item.UserID <= 0 || item.Name == "" {
		return Item{}, fmt.Errorf("%w: user_id and name required", shared.ErrValidation)
	}
	if item.Kind != KindAsset && item.Kind != KindLiability {
		return Item{}, fmt.Errorf("%w: kind must be ASSET or LIABILITY", shared.ErrValidation)
	}
	if item.Value.Sign() < 0 {
		return Item{}, fmt.Errorf("%w: value must not be negative", shared.ErrValidation)
	}
	if len(item.Currency) != 3 {
		return Item{}, fmt.Errorf("%w: currency must be a 3-letter code", shared.ErrValidation)
	}
	return s.repo.Insert(ctx, item)
}

// List returns a user's items.
func (s *Service) List(ctx context.Context, userID int64) ([]Item, error) {
	return s.repo.List(ctx, userID)
}

// Remove deletes one item.
func (s *Service) Remove(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Summarize normalizes every item at the current rate and nets them off.
func (s *Service) Summarize(ctx context.Context, userID int64) (Summary, error) {
	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	assets, liabilities := decimal.Zero, decimal.Zero
	for _, item := range items {
		value, err := s.fx.NormalizeCurrent(ctx, item.Value, item.Currency)
		if err != nil {
			return Summary{}, fmt.Errorf("item %d (%s): %w", item.ID, item.Name, err)
		}
		if item.Kind == KindAsset {
			assets = assets.Add(value)
		} else {
			liabilities = liabilities.Add(value)
		}
	}

	return Summary{
		Assets:      money.Round(assets),
		Liabilities: money.Round(liabilities),
		NetWorth:    money.Round(assets.Sub(liabilities)),
		Currency:    fx.BaseCurrency,
		AsOf:        time.Now(),
	}, nil
}
