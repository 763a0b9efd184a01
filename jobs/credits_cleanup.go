package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Nanlep/Fiscana-sub000/internal/wallet"
)

// CreditsCleanupJob prunes funding idempotency keys past the retention
// window. The window must comfortably exceed the provider's maximum
// redelivery horizon or a pruned key would let an old event apply twice.
type CreditsCleanupJob struct {
	Wallets *wallet.Service
	Logger  *slog.Logger
}

// NewCreditsCleanupJob initialises the cleanup handler.
func NewCreditsCleanupJob(service *wallet.Service, logger *slog.Logger) *CreditsCleanupJob {
	return &CreditsCleanupJob{Wallets: service, Logger: logger}
}

// Handle executes the cleanup.
func (j *CreditsCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Wallets == nil {
		return errors.New("credits cleanup: handler not configured")
	}
	var payload CreditKeysCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = 90
	}

	removed, err := j.Wallets.CleanupCreditKeys(ctx, payload.RetentionDays)
	if err != nil {
		j.Logger.Error("credit key cleanup failed", slog.Any("error", err))
		return err
	}
	j.Logger.Info("credit key cleanup complete",
		slog.Int64("removed", removed),
		slog.Int("retention_days", payload.RetentionDays),
	)
	return nil
}
