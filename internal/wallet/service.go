package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

// Service applies debits and credits under the wallet invariants.
type Service struct {
	repo   Repository
	rail   PayoutRail
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs the service. rail may be nil when withdrawals are
// disabled (worker processes only credit).
func NewService(repo Repository, rail PayoutRail, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, rail: rail, audit: audit, logger: logger}
}

// Balances returns all wallets held by a user.
func (s *Service) Balances(ctx context.Context, userID int64) ([]Balance, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user required", shared.ErrValidation)
	}
	return s.repo.ListBalances(ctx, userID)
}

// Credit applies a funding event exactly once per merchant reference.
// Redelivery returns the original application's result with no balance
// change; the key check and the increment share one critical section, so two
// concurrent copies of the same reference cannot both apply.
func (s *Service) Credit(ctx context.Context, userID int64, currency string, amount decimal.Decimal, merchantRef string) (CreditResult, error) {
	if amount.Sign() <= 0 {
		return CreditResult{}, fmt.Errorf("%w: credit amount must be positive", shared.ErrValidation)
	}
	if strings.TrimSpace(merchantRef) == "" {
		return CreditResult{}, fmt.Errorf("%w: merchant reference required", shared.ErrValidation)
	}

	var result CreditResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		w, err := tx.GetForUpdate(ctx, userID, currency)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertCreditKey(ctx, w.ID, merchantRef, amount)
		if err != nil {
			return err
		}
		if !inserted {
			prior, err := tx.GetCreditKey(ctx, w.ID, merchantRef)
			if err != nil {
				return err
			}
			result = CreditResult{MerchantRef: merchantRef, Amount: prior, Available: w.Available, AlreadyApplied: true}
			return nil
		}
		available, err := tx.AddAvailable(ctx, w.ID, amount)
		if err != nil {
			return err
		}
		result = CreditResult{MerchantRef: merchantRef, Amount: amount, Available: available}
		return nil
	})
	if err != nil {
		return CreditResult{}, err
	}

	if !result.AlreadyApplied {
		s.recordAudit(ctx, userID, "wallet.credit", map[string]any{
			"currency": currency, "amount": amount.String(), "merchant_ref": merchantRef,
		})
	}
	return result, nil
}

// Debit withdraws funds unconditionally of any external rail; callers that
// need a payout use Withdraw instead.
func (s *Service) Debit(ctx context.Context, userID int64, currency string, amount decimal.Decimal) (Balance, error) {
	if amount.Sign() <= 0 {
		return Balance{}, fmt.Errorf("%w: debit amount must be positive", shared.ErrValidation)
	}

	var out Balance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		w, err := tx.GetForUpdate(ctx, userID, currency)
		if err != nil {
			return err
		}
		available, err := tx.DebitAvailable(ctx, w.ID, amount)
		if err != nil {
			return err
		}
		w.Available = available
		out = w
		return nil
	})
	if err != nil {
		return Balance{}, err
	}

	s.recordAudit(ctx, userID, "wallet.debit", map[string]any{
		"currency": currency, "amount": amount.String(),
	})
	return out, nil
}

// Withdraw debits the wallet and pays out through the external rail. The
// payout is initiated inside the debit transaction: if initiation fails the
// transaction rolls back and the balance is untouched.
func (s *Service) Withdraw(ctx context.Context, in WithdrawInput) (WithdrawResult, error) {
	if s.rail == nil {
		return WithdrawResult{}, fmt.Errorf("%w: payout rail not configured", shared.ErrPayoutFailed)
	}
	if in.Amount.Sign() <= 0 {
		return WithdrawResult{}, fmt.Errorf("%w: withdrawal amount must be positive", shared.ErrValidation)
	}
	if in.AccountNumber == "" || in.BankCode == "" {
		return WithdrawResult{}, fmt.Errorf("%w: destination account required", shared.ErrValidation)
	}

	accountName, err := s.rail.ResolveAccount(ctx, in.AccountNumber, in.BankCode)
	if err != nil {
		return WithdrawResult{}, err
	}

	var out WithdrawResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		w, err := tx.GetForUpdate(ctx, in.UserID, in.Currency)
		if err != nil {
			return err
		}
		if w.Available.LessThan(in.Amount) {
			return fmt.Errorf("%w: available %s, requested %s", shared.ErrInsufficientFunds, w.Available, in.Amount)
		}
		payout, err := s.rail.InitiatePayout(ctx, PayoutRequest{
			Amount:        in.Amount,
			Currency:      in.Currency,
			AccountNumber: in.AccountNumber,
			BankCode:      in.BankCode,
			Narration:     in.Narration,
		})
		if err != nil {
			return err
		}
		available, err := tx.DebitAvailable(ctx, w.ID, in.Amount)
		if err != nil {
			return err
		}
		out = WithdrawResult{Reference: payout.Reference, AccountName: accountName, Available: available}
		return nil
	})
	if err != nil {
		return WithdrawResult{}, err
	}

	s.recordAudit(ctx, in.UserID, "wallet.withdraw", map[string]any{
		"currency": in.Currency, "amount": in.Amount.String(), "reference": out.Reference,
	})
	return out, nil
}

// CleanupCreditKeys trims the consumed-reference ledger; called by the
// retention job.
func (s *Service) CleanupCreditKeys(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = 90
	}
	return s.repo.CleanupCreditKeys(ctx, daysToDuration(olderThanDays))
}

func (s *Service) recordAudit(ctx context.Context, userID int64, action string, meta map[string]any) {
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  userID,
		Action:   action,
		Entity:   "wallet",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit wallet", slog.String("action", action), slog.Any("error", err))
	}
}
