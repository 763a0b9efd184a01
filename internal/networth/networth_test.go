package networth

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Nanlep/Fiscana-sub000/internal/fx"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

type memoryRepo struct {
	seq   int64
	items map[int64]Item
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]Item{}}
}

func (m *memoryRepo) Insert(ctx context.Context, item Item) (Item, error) {
	m.seq++
	item.ID = m.seq
	item.CreatedAt = time.Now()
	m.items[item.ID] = item
	return item, nil
}

func (m *memoryRepo) List(ctx context.Context, userID int64) ([]Item, error) {
	var out []Item
	for _, item := range m.items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type fixedRateRepo struct {
	rate decimal.Decimal
}

func (r fixedRateRepo) Current(ctx context.Context) (fx.RateRecord, error) {
	return fx.RateRecord{Rate: r.rate}, nil
}

func (r fixedRateRepo) Set(ctx context.Context, rate decimal.Decimal, actorID int64) error {
	return nil
}

func newTestService(rate int64) (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	fxService := fx.NewService(fixedRateRepo{rate: decimal.NewFromInt(rate)}, nil, time.Minute, nil, nil)
	return NewService(repo, fxService), repo
}

func TestAddValidation(t *testing.T) {
	svc, _ := newTestService(1550)

	valid := Item{UserID: 7, Kind: KindAsset, Name: "Savings", Value: decimal.NewFromInt(100000), Currency: "NGN"}
	_, err := svc.Add(context.Background(), valid)
	require.NoError(t, err)

	for _, mutate := range []func(*Item){
		func(i *Item) { i.UserID = 0 },
		func(i *Item) { i.Kind = "EQUITY" },
		func(i *Item) { i.Value = decimal.NewFromInt(-1) },
		func(i *Item) { i.Currency = "N" },
	} {
		bad := valid
		mutate(&bad)
		_, err := svc.Add(context.Background(), bad)
		require.ErrorIs(t, err, shared.ErrValidation)
	}
}

func TestSummarizeNormalizesMixedCurrencies(t *testing.T) {
	svc, repo := newTestService(1550)

	for _, item := range []Item{
		{UserID: 7, Kind: KindAsset, Name: "Savings", Value: decimal.NewFromInt(500000), Currency: "NGN"},
		{UserID: 7, Kind: KindAsset, Name: "Brokerage", Value: decimal.NewFromInt(200), Currency: "USD"},
		{UserID: 7, Kind: KindLiability, Name: "Card", Value: decimal.NewFromInt(150000), Currency: "NGN"},
		{UserID: 9, Kind: KindAsset, Name: "Other user", Value: decimal.NewFromInt(1), Currency: "NGN"},
	} {
		_, err := repo.Insert(context.Background(), item)
		require.NoError(t, err)
	}

	summary, err := svc.Summarize(context.Background(), 7)
	require.NoError(t, err)

	// 500000 + 200 x 1550 = 810000
	require.True(t, summary.Assets.Equal(decimal.NewFromInt(810000)), summary.Assets.String())
	require.True(t, summary.Liabilities.Equal(decimal.NewFromInt(150000)))
	require.True(t, summary.NetWorth.Equal(decimal.NewFromInt(660000)))
	require.Equal(t, "NGN", summary.Currency)
}

func TestSummarizeEmpty(t *testing.T) {
	svc, _ := newTestService(1550)
	summary, err := svc.Summarize(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, summary.NetWorth.IsZero())
}
