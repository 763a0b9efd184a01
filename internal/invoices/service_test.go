package invoices

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Nanlep/Fiscana-sub000/internal/ledger"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

type walletCredit struct {
	userID      int64
	currency    string
	amount      decimal.Decimal
	merchantRef string
}

// memoryRepo emulates the PostgreSQL repository. The mutex held across the
// whole WithTx callback stands in for the row lock GetForUpdate takes, and a
// snapshot restore on error stands in for the rollback.
type memoryRepo struct {
	mu       sync.Mutex
	seq      int64
	numSeq   int64
	invoices map[int64]*Invoice
	entries  []ledger.Entry
	credits  []walletCredit
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{invoices: map[int64]*Invoice{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[int64]Invoice, len(m.invoices))
	for id, inv := range m.invoices {
		cp := *inv
		cp.Items = append([]Item(nil), inv.Items...)
		cp.Payments = append([]PaymentRecord(nil), inv.Payments...)
		snapshot[id] = cp
	}
	entryLen, creditLen, seq := len(m.entries), len(m.credits), m.seq

	if err := fn(ctx, (*memoryTx)(m)); err != nil {
		m.invoices = make(map[int64]*Invoice, len(snapshot))
		for id := range snapshot {
			cp := snapshot[id]
			m.invoices[id] = &cp
		}
		m.entries = m.entries[:entryLen]
		m.credits = m.credits[:creditLen]
		m.seq = seq
		return err
	}
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, shared.ErrNotFound
	}
	return *inv, nil
}

func (m *memoryRepo) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.invoices {
		if inv.UserID != req.UserID {
			continue
		}
		if req.Status != nil && inv.Status != *req.Status {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (m *memoryRepo) ListUnpaidDueBefore(ctx context.Context, cutoff time.Time) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.invoices {
		if (inv.Status == StatusSent || inv.Status == StatusPartiallyPaid) && inv.DueDate.Before(cutoff) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *memoryRepo) GenerateNumber(ctx context.Context, issueDate time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.numSeq++
	return fmt.Sprintf("INV-%s-%05d", issueDate.Format("200601"), m.numSeq), nil
}

type memoryTx memoryRepo

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := t.invoices[id]
	if !ok {
		return Invoice{}, shared.ErrNotFound
	}
	return *inv, nil
}

func (t *memoryTx) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	t.seq++
	inv.ID = t.seq
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	t.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (t *memoryTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	inv, ok := t.invoices[item.InvoiceID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	item.ID = int64(len(inv.Items) + 1)
	inv.Items = append(inv.Items, item)
	return item.ID, nil
}

func (t *memoryTx) DeleteItems(ctx context.Context, invoiceID int64) error {
	if inv, ok := t.invoices[invoiceID]; ok {
		inv.Items = nil
	}
	return nil
}

func (t *memoryTx) UpdateDraft(ctx context.Context, in Invoice) error {
	inv, ok := t.invoices[in.ID]
	if !ok || inv.Status != StatusDraft {
		return shared.ErrNotFound
	}
	in.Items = inv.Items
	in.Payments = inv.Payments
	*inv = in
	return nil
}

func (t *memoryTx) UpdateStatus(ctx context.Context, id int64, status Status) error {
	inv, ok := t.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.Status = status
	return nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, p PaymentRecord) error {
	inv, ok := t.invoices[p.InvoiceID]
	if !ok {
		return shared.ErrNotFound
	}
	inv.Payments = append(inv.Payments, p)
	return nil
}

func (t *memoryTx) UpdateSettlement(ctx context.Context, id int64, amountPaid decimal.Decimal, status Status, paidDate *time.Time) error {
	inv, ok := t.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.AmountPaid = amountPaid
	inv.Status = status
	if paidDate != nil {
		inv.PaidDate = paidDate
	}
	return nil
}

func (t *memoryTx) DeleteInvoice(ctx context.Context, id int64) error {
	if _, ok := t.invoices[id]; !ok {
		return shared.ErrNotFound
	}
	delete(t.invoices, id)
	return nil
}

func (t *memoryTx) InsertLedgerEntry(ctx context.Context, e ledger.Entry) (int64, error) {
	e.ID = int64(len(t.entries) + 1)
	t.entries = append(t.entries, e)
	return e.ID, nil
}

func (t *memoryTx) CreditWallet(ctx context.Context, userID int64, currency string, amount decimal.Decimal, merchantRef string) error {
	for _, c := range t.credits {
		if c.merchantRef == merchantRef {
			return nil
		}
	}
	t.credits = append(t.credits, walletCredit{userID: userID, currency: currency, amount: amount, merchantRef: merchantRef})
	return nil
}

func draftRequest() CreateInvoiceRequest {
	return CreateInvoiceRequest{
		UserID:      7,
		ClientName:  "Adaeze & Co",
		ClientEmail: "billing@adaeze.example",
		EntityType:  "INDIVIDUAL",
		IssueDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Currency:    "NGN",
		Items: []CreateInvoiceItemReq{
			{Description: "Consulting retainer", Quantity: 1, UnitPrice: "50000"},
		},
	}
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil, nil, nil)
}

func sentInvoice(t *testing.T, svc *Service, req CreateInvoiceRequest) Invoice {
	t.Helper()
	inv, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	inv, err = svc.Send(context.Background(), inv.ID, req.UserID)
	require.NoError(t, err)
	return inv
}

func TestCreateDerivesTaxAmounts(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	req := draftRequest()
	req.ApplyVAT = true
	req.ApplyWHT = true
	req.Items = []CreateInvoiceItemReq{
		{Description: "Implementation", Quantity: 2, UnitPrice: "50000"},
	}

	inv, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, StatusDraft, inv.Status)
	require.True(t, inv.SubTotal.Equal(decimal.NewFromInt(100000)), inv.SubTotal.String())
	require.True(t, inv.VATAmount.Equal(decimal.NewFromInt(7500)), inv.VATAmount.String())
	require.True(t, inv.WHTDeduction.Equal(decimal.NewFromInt(5000)), inv.WHTDeduction.String())
	require.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(102500)), inv.TotalAmount.String())
	require.Regexp(t, `^INV-202603-\d{5}$`, inv.Number)
	require.Len(t, inv.Items, 1)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	req := draftRequest()
	req.Items = nil
	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, shared.ErrValidation)

	req = draftRequest()
	req.Items[0].UnitPrice = "-10"
	_, err = svc.Create(context.Background(), req)
	require.ErrorIs(t, err, shared.ErrValidation)

	req = draftRequest()
	req.DueDate = req.IssueDate.AddDate(0, 0, -1)
	_, err = svc.Create(context.Background(), req)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPaymentLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	inv := sentInvoice(t, svc, draftRequest())
	require.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(50000)))

	inv, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: "20000"})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, inv.Status)
	require.True(t, inv.Balance().Equal(decimal.NewFromInt(30000)), inv.Balance().String())
	require.Nil(t, inv.PaidDate)

	inv, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: "30000"})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)
	require.True(t, inv.Balance().IsZero())
	require.NotNil(t, inv.PaidDate)

	// a settled invoice rejects further payments as overshoot
	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: "1"})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestPaymentOnSettledInvoice(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	inv := sentInvoice(t, svc, draftRequest())

	inv, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: "50000"})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)

	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: "1"})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	// the rejection leaves the settled invoice untouched
	got, err := svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, got.Status)
	require.True(t, got.AmountPaid.Equal(decimal.NewFromInt(50000)))
	require.Len(t, got.Payments, 1)
	require.Len(t, repo.entries, 1)
	require.Len(t, repo.credits, 1)
}

func TestPaymentRejectedOnDraft(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	inv, err := svc.Create(context.Background(), draftRequest())
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: "100"})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestPaymentAmountValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	inv := sentInvoice(t, svc, draftRequest())

	_, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: "0"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: "-5"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: "50000.02"})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	// a failed overpayment leaves no partial effects behind
	require.Empty(t, repo.entries)
	require.Empty(t, repo.credits)
	got, err := svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, got.Status)
	require.Empty(t, got.Payments)

	// one minor unit over is within the reconciliation epsilon
	paid, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: "50000.01"})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
}

func TestPaymentEmitsLedgerAndWalletOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	inv := sentInvoice(t, svc, draftRequest())

	got, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: "20000"})
	require.NoError(t, err)

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	require.Equal(t, ledger.KindIncome, entry.Kind)
	require.Equal(t, ledger.OriginInvoiceGenerated, entry.Origin)
	require.NotNil(t, entry.InvoiceID)
	require.Equal(t, inv.ID, *entry.InvoiceID)
	require.True(t, entry.Amount.Equal(decimal.NewFromInt(20000)))

	require.Len(t, repo.credits, 1)
	credit := repo.credits[0]
	require.Equal(t, inv.UserID, credit.userID)
	require.Equal(t, "NGN", credit.currency)
	require.True(t, credit.amount.Equal(decimal.NewFromInt(20000)))
	require.Equal(t, "invpay:"+got.Payments[0].ID, credit.merchantRef)
	require.Equal(t, got.Payments[0].LedgerEntryID, entry.ID)
}

func TestAmountPaidMatchesPaymentSum(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	inv := sentInvoice(t, svc, draftRequest())

	for _, amt := range []string{"12500", "7500.50", "20000"} {
		var err error
		inv, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: amt})
		require.NoError(t, err)
	}

	sum := decimal.Zero
	for _, p := range inv.Payments {
		sum = sum.Add(p.Amount)
	}
	require.True(t, inv.AmountPaid.Equal(sum), "amount_paid %s != payment sum %s", inv.AmountPaid, sum)
	require.Equal(t, StatusPartiallyPaid, inv.Status)
}

func TestConcurrentFullPayments(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	inv := sentInvoice(t, svc, draftRequest())
	full := inv.TotalAmount.String()

	var g errgroup.Group
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: full})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var succeeded, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, shared.ErrInvalidAmount):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, rejected)

	got, err := svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, got.Status)
	require.True(t, got.AmountPaid.Equal(got.TotalAmount))
	require.Len(t, repo.entries, 1)
	require.Len(t, repo.credits, 1)
}

func TestUpdateDraftOnly(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	inv, err := svc.Create(context.Background(), draftRequest())
	require.NoError(t, err)

	applyVAT := true
	inv, err = svc.Update(context.Background(), inv.ID, UpdateInvoiceRequest{ApplyVAT: &applyVAT})
	require.NoError(t, err)
	require.True(t, inv.VATAmount.Equal(decimal.NewFromInt(3750)), inv.VATAmount.String())
	require.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(53750)))

	_, err = svc.Send(context.Background(), inv.ID, 7)
	require.NoError(t, err)

	name := "Renamed Client"
	_, err = svc.Update(context.Background(), inv.ID, UpdateInvoiceRequest{ClientName: &name})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestDeleteDraftOnly(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	inv, err := svc.Create(context.Background(), draftRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), inv.ID, 7))

	_, err = svc.Get(context.Background(), inv.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	inv = sentInvoice(t, svc, draftRequest())
	err = svc.Delete(context.Background(), inv.ID, 7)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSendRequiresDraft(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	inv := sentInvoice(t, svc, draftRequest())

	_, err := svc.Send(context.Background(), inv.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestOverdueIsDerived(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	req := draftRequest()
	req.DueDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	inv := sentInvoice(t, svc, req)

	before := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	after := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	require.Equal(t, StatusSent, inv.DisplayStatus(before))
	require.Equal(t, StatusOverdue, inv.DisplayStatus(after))

	// the stored status never flips to OVERDUE
	stored, err := svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, stored.Status)

	overdue, err := svc.Overdue(context.Background(), after)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, StatusOverdue, overdue[0].Status)

	// settling the invoice clears it from the overdue scan
	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentRequest{Amount: inv.TotalAmount.String()})
	require.NoError(t, err)
	overdue, err = svc.Overdue(context.Background(), after)
	require.NoError(t, err)
	require.Empty(t, overdue)

	// a paid invoice never shows as overdue, but a past-due draft does
	paid, err := svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.DisplayStatus(after))

	draftReq := draftRequest()
	draftReq.DueDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	draft, err := svc.Create(context.Background(), draftReq)
	require.NoError(t, err)
	require.Equal(t, StatusOverdue, draft.DisplayStatus(after))
	require.Equal(t, StatusDraft, draft.Status)
}
