package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Nanlep/Fiscana-sub000/internal/invoices"
)

// OverdueScanJob walks sent invoices past due and logs reminders. OVERDUE is
// never written back; the scan only reads the derived state.
type OverdueScanJob struct {
	Invoices *invoices.Service
	Logger   *slog.Logger
	clock    func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(service *invoices.Service, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{
		Invoices: service,
		Logger:   logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the overdue scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.clock()
	}

	overdue, err := j.Invoices.Overdue(ctx, asOf)
	if err != nil {
		j.Logger.Error("overdue scan failed", slog.Any("error", err))
		return err
	}

	for _, inv := range overdue {
		j.Logger.Info("invoice overdue",
			slog.String("number", inv.Number),
			slog.Int64("user_id", inv.UserID),
			slog.Time("due_date", inv.DueDate),
			slog.String("balance", inv.Balance().String()),
		)
	}
	j.Logger.Info("overdue scan complete", slog.Int("count", len(overdue)), slog.Time("as_of", asOf))
	return nil
}
