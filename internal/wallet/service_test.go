package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

// memoryRepo serializes WithTx on a mutex, mirroring the row lock the
// PostgreSQL repository takes with SELECT ... FOR UPDATE.
type memoryRepo struct {
	mu      sync.Mutex
	wallets map[string]*Balance
	credits map[string]decimal.Decimal
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{wallets: make(map[string]*Balance), credits: make(map[string]decimal.Decimal)}
}

func walletKey(userID int64, currency string) string {
	return fmt.Sprintf("%d:%s", userID, currency)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, staged: make(map[int64]decimal.Decimal), stagedKeys: make(map[string]decimal.Decimal)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (r *memoryRepo) ListBalances(ctx context.Context, userID int64) ([]Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Balance
	for _, w := range r.wallets {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (r *memoryRepo) CleanupCreditKeys(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

type memoryTx struct {
	repo       *memoryRepo
	staged     map[int64]decimal.Decimal
	stagedKeys map[string]decimal.Decimal
}

func (t *memoryTx) commit() {
	for id, available := range t.staged {
		for _, w := range t.repo.wallets {
			if w.ID == id {
				w.Available = available
				w.UpdatedAt = time.Now()
			}
		}
	}
	for key, amount := range t.stagedKeys {
		t.repo.credits[key] = amount
	}
}

func (t *memoryTx) GetForUpdate(ctx context.Context, userID int64, currency string) (Balance, error) {
	key := walletKey(userID, currency)
	w, ok := t.repo.wallets[key]
	if !ok {
		t.repo.nextID++
		w = &Balance{ID: t.repo.nextID, UserID: userID, Currency: currency, Available: decimal.Zero, Pending: decimal.Zero}
		t.repo.wallets[key] = w
	}
	out := *w
	if staged, ok := t.staged[w.ID]; ok {
		out.Available = staged
	}
	return out, nil
}

func (t *memoryTx) creditKey(walletID int64, merchantRef string) string {
	return fmt.Sprintf("%d:%s", walletID, merchantRef)
}

func (t *memoryTx) InsertCreditKey(ctx context.Context, walletID int64, merchantRef string, amount decimal.Decimal) (bool, error) {
	key := t.creditKey(walletID, merchantRef)
	if _, ok := t.repo.credits[key]; ok {
		return false, nil
	}
	if _, ok := t.stagedKeys[key]; ok {
		return false, nil
	}
	t.stagedKeys[key] = amount
	return true, nil
}

func (t *memoryTx) GetCreditKey(ctx context.Context, walletID int64, merchantRef string) (decimal.Decimal, error) {
	key := t.creditKey(walletID, merchantRef)
	if amount, ok := t.repo.credits[key]; ok {
		return amount, nil
	}
	if amount, ok := t.stagedKeys[key]; ok {
		return amount, nil
	}
	return decimal.Decimal{}, shared.ErrNotFound
}

func (t *memoryTx) available(walletID int64) decimal.Decimal {
	if staged, ok := t.staged[walletID]; ok {
		return staged
	}
	for _, w := range t.repo.wallets {
		if w.ID == walletID {
			return w.Available
		}
	}
	return decimal.Zero
}

func (t *memoryTx) AddAvailable(ctx context.Context, walletID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	next := t.available(walletID).Add(delta)
	t.staged[walletID] = next
	return next, nil
}

func (t *memoryTx) DebitAvailable(ctx context.Context, walletID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	current := t.available(walletID)
	if current.LessThan(amount) {
		return decimal.Decimal{}, shared.ErrInsufficientFunds
	}
	next := current.Sub(amount)
	t.staged[walletID] = next
	return next, nil
}

type stubRail struct {
	mu        sync.Mutex
	failNext  bool
	initiated int
}

func (r *stubRail) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (string, error) {
	return "ADAEZE OKAFOR", nil
}

func (r *stubRail) InitiatePayout(ctx context.Context, req PayoutRequest) (PayoutResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		return PayoutResult{}, fmt.Errorf("%w: provider unavailable", shared.ErrPayoutFailed)
	}
	r.initiated++
	return PayoutResult{Reference: uuid.NewString(), Status: "pending"}, nil
}

func TestCreditIsIdempotentPerMerchantRef(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	amount := decimal.NewFromInt(5000)

	first, err := svc.Credit(ctx, 1, "NGN", amount, "PSK_abc123")
	require.NoError(t, err)
	require.False(t, first.AlreadyApplied)
	require.True(t, first.Available.Equal(amount))

	// Redelivery N times changes the balance by exactly amount, once.
	for i := 0; i < 5; i++ {
		again, err := svc.Credit(ctx, 1, "NGN", amount, "PSK_abc123")
		require.NoError(t, err)
		require.True(t, again.AlreadyApplied)
		require.True(t, again.Amount.Equal(amount))
		require.True(t, again.Available.Equal(amount))
	}

	balances, err := svc.Balances(ctx, 1)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.True(t, balances[0].Available.Equal(amount))
}

func TestCreditConcurrentRedelivery(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	amount := decimal.NewFromInt(2500)

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := svc.Credit(context.Background(), 9, "NGN", amount, "PSK_dup")
			return err
		})
	}
	require.NoError(t, g.Wait())

	balances, err := svc.Balances(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.True(t, balances[0].Available.Equal(amount), "available = %s", balances[0].Available)
}

func TestCreditValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, "NGN", decimal.Zero, "ref")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Credit(ctx, 1, "NGN", decimal.NewFromInt(100), "  ")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDebitInsufficientFunds(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 2, "NGN", decimal.NewFromInt(1000), "ref-1")
	require.NoError(t, err)

	_, err = svc.Debit(ctx, 2, "NGN", decimal.NewFromInt(1001))
	require.ErrorIs(t, err, shared.ErrInsufficientFunds)

	out, err := svc.Debit(ctx, 2, "NGN", decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.True(t, out.Available.IsZero())
}

func TestConcurrentDebitsNeverGoNegative(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 3, "NGN", decimal.NewFromInt(10000), "seed")
	require.NoError(t, err)

	// Two withdrawals of the full balance: exactly one may succeed.
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Debit(ctx, 3, "NGN", decimal.NewFromInt(10000))
			results <- err
		}()
	}
	var failures, successes int
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			require.ErrorIs(t, err, shared.ErrInsufficientFunds)
			failures++
		} else {
			successes++
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, failures)

	balances, err := svc.Balances(ctx, 3)
	require.NoError(t, err)
	require.True(t, balances[0].Available.GreaterThanOrEqual(decimal.Zero))
	require.True(t, balances[0].Available.IsZero())
}

func TestWithdrawPayoutFailureLeavesBalance(t *testing.T) {
	repo := newMemoryRepo()
	rail := &stubRail{failNext: true}
	svc := NewService(repo, rail, nil, nil)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 4, "NGN", decimal.NewFromInt(50000), "seed")
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, WithdrawInput{
		UserID: 4, Currency: "NGN", Amount: decimal.NewFromInt(20000),
		AccountNumber: "0123456789", BankCode: "058",
	})
	require.ErrorIs(t, err, shared.ErrPayoutFailed)

	balances, err := svc.Balances(ctx, 4)
	require.NoError(t, err)
	require.True(t, balances[0].Available.Equal(decimal.NewFromInt(50000)))
	require.Zero(t, rail.initiated)
}

func TestWithdrawDebitsAfterPayoutConfirms(t *testing.T) {
	repo := newMemoryRepo()
	rail := &stubRail{}
	svc := NewService(repo, rail, nil, nil)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 5, "NGN", decimal.NewFromInt(50000), "seed")
	require.NoError(t, err)

	out, err := svc.Withdraw(ctx, WithdrawInput{
		UserID: 5, Currency: "NGN", Amount: decimal.NewFromInt(20000),
		AccountNumber: "0123456789", BankCode: "058", Narration: "rent",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Reference)
	require.Equal(t, "ADAEZE OKAFOR", out.AccountName)
	require.True(t, out.Available.Equal(decimal.NewFromInt(30000)))
	require.Equal(t, 1, rail.initiated)
}

func TestWithdrawInsufficientFundsSkipsRail(t *testing.T) {
	repo := newMemoryRepo()
	rail := &stubRail{}
	svc := NewService(repo, rail, nil, nil)

	_, err := svc.Withdraw(context.Background(), WithdrawInput{
		UserID: 6, Currency: "NGN", Amount: decimal.NewFromInt(100),
		AccountNumber: "0123456789", BankCode: "058",
	})
	require.ErrorIs(t, err, shared.ErrInsufficientFunds)
	require.Zero(t, rail.initiated)
}

func TestWithdrawWithoutRail(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	_, err := svc.Withdraw(context.Background(), WithdrawInput{
		UserID: 1, Currency: "NGN", Amount: decimal.NewFromInt(1),
		AccountNumber: "0123456789", BankCode: "058",
	})
	require.True(t, errors.Is(err, shared.ErrPayoutFailed))
}
