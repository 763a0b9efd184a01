package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/fx"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

// Service computes variance reports on demand. Reports are cached briefly in
// redis keyed by (user, month, rate), so a rate change naturally misses the
// cache and re-prices from the ledger.
type Service struct {
	repo     Repository
	fx       *fx.Service
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewService constructs the service. redis may be nil, which disables caching.
func NewService(repo Repository, fxService *fx.Service, rdb *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{repo: repo, fx: fxService, redis: rdb, cacheTTL: cacheTTL, logger: logger}
}

// Create registers a budget.
func (s *Service) Create(ctx context.Context, b Budget) (Budget, error) {
	if b.UserID <= 0 || b.Category == "" {
		return Budget{}, fmt.Errorf("%w: user_id and category required", shared.ErrValidation)
	}
	if b.Limit.Sign() <= 0 {
		return Budget{}, fmt.Errorf("%w: limit must be positive", shared.ErrValidation)
	}
	if len(b.Currency) != 3 {
		return Budget{}, fmt.Errorf("%w: currency must be a 3-letter code", shared.ErrValidation)
	}
	if b.Period == "" {
		b.Period = PeriodMonthly
	}
	if b.Period != PeriodMonthly {
		return Budget{}, fmt.Errorf("%w: only MONTHLY budgets are supported", shared.ErrValidation)
	}
	return s.repo.Insert(ctx, b)
}

// List returns a user's budgets.
func (s *Service) List(ctx context.Context, userID int64) ([]Budget, error) {
	return s.repo.List(ctx, userID)
}

// Delete removes a budget.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Variances computes the report for every budget the user holds, for the
// month containing ref.
func (s *Service) Variances(ctx context.Context, userID int64, ref time.Time) ([]VarianceReport, error) {
	rate := decimal.Zero
	if s.fx != nil {
		current, err := s.fx.Current(ctx)
		if err == nil {
			rate = current
		} else if s.logger != nil {
			// base-currency budgets still compute; foreign ones will error
			s.logger.Warn("budget variance without rate", slog.Any("error", err))
		}
	}

	cacheKey := fmt.Sprintf("budget:variance:%d:%s:%s", userID, ref.Format("2006-01"), rate.String())
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var reports []VarianceReport
			if json.Unmarshal([]byte(cached), &reports) == nil {
				return reports, nil
			}
		}
	}

	budgets, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	from := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	reports := make([]VarianceReport, 0, len(budgets))
	for _, b := range budgets {
		spent, err := s.repo.SpentByCurrency(ctx, b, from, to)
		if err != nil {
			return nil, err
		}
		report, err := ComputeVariance(b, from, spent, rate)
		if err != nil {
			return nil, fmt.Errorf("budget %d (%s): %w", b.ID, b.Category, err)
		}
		reports = append(reports, report)
	}

	if s.redis != nil {
		if payload, err := json.Marshal(reports); err == nil {
			if err := s.redis.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil && s.logger != nil {
				s.logger.Warn("budget variance cache set", slog.Any("error", err))
			}
		}
	}
	return reports, nil
}

// OverBudget filters Variances down to the budgets currently blown; the
// monthly alert job sends these out.
func (s *Service) OverBudget(ctx context.Context, userID int64, ref time.Time) ([]VarianceReport, error) {
	reports, err := s.Variances(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	over := reports[:0]
	for _, r := range reports {
		if r.Status == StatusOver {
			over = append(over, r)
		}
	}
	return over, nil
}
