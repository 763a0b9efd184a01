package budget

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Nanlep/Fiscana-sub000/internal/fx"
	"github.com/Nanlep/Fiscana-sub000/internal/ledger"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

type memoryRepo struct {
	seq        int64
	budgets    map[int64]Budget
	spent      map[int64][]CurrencyAmount
	spentCalls int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{budgets: map[int64]Budget{}, spent: map[int64][]CurrencyAmount{}}
}

func (m *memoryRepo) Insert(ctx context.Context, b Budget) (Budget, error) {
	m.seq++
	b.ID = m.seq
	b.CreatedAt = time.Now()
	m.budgets[b.ID] = b
	return b, nil
}

func (m *memoryRepo) List(ctx context.Context, userID int64) ([]Budget, error) {
	var out []Budget
	for _, b := range m.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Budget, error) {
	b, ok := m.budgets[id]
	if !ok {
		return Budget{}, shared.ErrNotFound
	}
	return b, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.budgets[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.budgets, id)
	return nil
}

func (m *memoryRepo) SpentByCurrency(ctx context.Context, b Budget, from, to time.Time) ([]CurrencyAmount, error) {
	m.spentCalls++
	return m.spent[b.ID], nil
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

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, time.Minute, nil)

	valid := Budget{UserID: 7, Category: "Software", Limit: decimal.NewFromInt(50000), Currency: "NGN", Scope: ledger.ClassBusiness}

	b, err := svc.Create(context.Background(), valid)
	require.NoError(t, err)
	require.Equal(t, PeriodMonthly, b.Period)

	bad := valid
	bad.Limit = decimal.Zero
	_, err = svc.Create(context.Background(), bad)
	require.ErrorIs(t, err, shared.ErrValidation)

	bad = valid
	bad.Currency = "NAIRA"
	_, err = svc.Create(context.Background(), bad)
	require.ErrorIs(t, err, shared.ErrValidation)

	bad = valid
	bad.Period = Period("WEEKLY")
	_, err = svc.Create(context.Background(), bad)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestVariancesComputesEachBudget(t *testing.T) {
	repo := newMemoryRepo()
	fxService := fx.NewService(fixedRateRepo{rate: decimal.NewFromInt(1550)}, nil, time.Minute, nil, nil)
	svc := NewService(repo, fxService, nil, time.Minute, nil)

	over, err := repo.Insert(context.Background(), Budget{UserID: 7, Category: "Software", Limit: decimal.NewFromInt(50000), Currency: "NGN", Scope: ledger.ClassBusiness, Period: PeriodMonthly})
	require.NoError(t, err)
	ok, err := repo.Insert(context.Background(), Budget{UserID: 7, Category: "Travel", Limit: decimal.NewFromInt(80000), Currency: "NGN", Scope: ledger.ClassBusiness, Period: PeriodMonthly})
	require.NoError(t, err)

	repo.spent[over.ID] = []CurrencyAmount{{Currency: "NGN", Amount: decimal.NewFromInt(60000)}}
	repo.spent[ok.ID] = []CurrencyAmount{{Currency: "USD", Amount: decimal.NewFromInt(10)}}

	reports, err := svc.Variances(context.Background(), 7, march)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	byCategory := map[string]VarianceReport{}
	for _, r := range reports {
		byCategory[r.Budget.Category] = r
	}
	require.Equal(t, StatusOver, byCategory["Software"].Status)
	require.True(t, byCategory["Software"].Variance.Equal(decimal.NewFromInt(-10000)))
	require.Equal(t, StatusOK, byCategory["Travel"].Status)
	require.True(t, byCategory["Travel"].Spent.Equal(decimal.NewFromInt(15500)))
}

func TestVariancesCachedPerRate(t *testing.T) {
	repo := newMemoryRepo()
	fxRepo := &mutableRateRepo{rate: decimal.NewFromInt(1550)}
	fxService := fx.NewService(fxRepo, nil, time.Minute, nil, nil)
	svc := NewService(repo, fxService, testRedis(t), time.Minute, nil)

	b, err := repo.Insert(context.Background(), Budget{UserID: 7, Category: "Software", Limit: decimal.NewFromInt(100), Currency: "USD", Scope: ledger.ClassBusiness, Period: PeriodMonthly})
	require.NoError(t, err)
	repo.spent[b.ID] = []CurrencyAmount{{Currency: "NGN", Amount: decimal.NewFromInt(100000)}}

	first, err := svc.Variances(context.Background(), 7, march)
	require.NoError(t, err)
	require.Equal(t, StatusOver, first[0].Status)
	require.Equal(t, 1, repo.spentCalls)

	// same rate hits the cache
	_, err = svc.Variances(context.Background(), 7, march)
	require.NoError(t, err)
	require.Equal(t, 1, repo.spentCalls)

	// a rate change misses the cache and re-prices the limit
	fxRepo.rate = decimal.NewFromInt(2000)
	second, err := svc.Variances(context.Background(), 7, march)
	require.NoError(t, err)
	require.Equal(t, 2, repo.spentCalls)
	require.True(t, second[0].Limit.Equal(decimal.NewFromInt(200000)))
	require.Equal(t, StatusOK, second[0].Status)
}

type mutableRateRepo struct {
	rate decimal.Decimal
}

func (r *mutableRateRepo) Current(ctx context.Context) (fx.RateRecord, error) {
	return fx.RateRecord{Rate: r.rate}, nil
}

func (r *mutableRateRepo) Set(ctx context.Context, rate decimal.Decimal, actorID int64) error {
	r.rate = rate
	return nil
}

func TestOverBudgetFilters(t *testing.T) {
	repo := newMemoryRepo()
	fxService := fx.NewService(fixedRateRepo{rate: decimal.NewFromInt(1550)}, nil, time.Minute, nil, nil)
	svc := NewService(repo, fxService, nil, time.Minute, nil)

	over, _ := repo.Insert(context.Background(), Budget{UserID: 7, Category: "Software", Limit: decimal.NewFromInt(50000), Currency: "NGN", Scope: ledger.ClassBusiness, Period: PeriodMonthly})
	repo.Insert(context.Background(), Budget{UserID: 7, Category: "Travel", Limit: decimal.NewFromInt(80000), Currency: "NGN", Scope: ledger.ClassBusiness, Period: PeriodMonthly})
	repo.spent[over.ID] = []CurrencyAmount{{Currency: "NGN", Amount: decimal.NewFromInt(60000)}}

	reports, err := svc.OverBudget(context.Background(), 7, march)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, "Software", reports[0].Budget.Category)
}
