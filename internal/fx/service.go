package fx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

const rateCacheKey = "fx:rate:current"

// Service exposes the exchange rate with a short read-through cache. The
// rate is read-mostly and eventually consistent; callers must not assume a
// stable value across two separate Current calls.
type Service struct {
	repo     Repository
	redis    *redis.Client
	cacheTTL time.Duration
	audit    *shared.AuditLogger
	logger   *slog.Logger
}

// NewService constructs the service. redis may be nil, which disables caching.
func NewService(repo Repository, rdb *redis.Client, cacheTTL time.Duration, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{repo: repo, redis: rdb, cacheTTL: cacheTTL, audit: audit, logger: logger}
}

// Current returns the process-wide exchange rate (base units per foreign unit).
func (s *Service) Current(ctx context.Context) (decimal.Decimal, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, rateCacheKey).Result(); err == nil {
			if rate, perr := decimal.NewFromString(cached); perr == nil {
				return rate, nil
			}
		}
	}
	rec, err := s.repo.Current(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, rateCacheKey, rec.Rate.String(), s.cacheTTL).Err(); err != nil && s.logger != nil {
			s.logger.Warn("fx rate cache set", slog.Any("error", err))
		}
	}
	return rec.Rate, nil
}

// SetRate updates the current rate. Historical amounts are not re-priced
// retroactively in storage, but every subsequent aggregate uses the new value.
func (s *Service) SetRate(ctx context.Context, rate decimal.Decimal, actorID int64) error {
	if rate.Sign() <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	if err := s.repo.Set(ctx, rate, actorID); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.Del(ctx, rateCacheKey).Err(); err != nil && s.logger != nil {
			s.logger.Warn("fx rate cache invalidate", slog.Any("error", err))
		}
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "fx.rate.set",
		Entity:   "fx_rate",
		EntityID: "current",
		Meta:     map[string]any{"rate": rate.String()},
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit fx rate", slog.Any("error", err))
	}
	return nil
}

// NormalizeCurrent converts an amount using the current rate. Convenience for
// read paths that aggregate many rows against one rate snapshot.
func (s *Service) NormalizeCurrent(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	if currency == BaseCurrency {
		return amount, nil
	}
	rate, err := s.Current(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return Normalize(amount, currency, rate)
}
