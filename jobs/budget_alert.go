package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nanlep/Fiscana-sub000/internal/budget"
)

// BudgetAlertJob sweeps every user with budgets and logs the ones blown for
// the month. Notification fan-out hangs off these log lines for now.
type BudgetAlertJob struct {
	Budgets *budget.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewBudgetAlertJob initialises the budget alert handler.
func NewBudgetAlertJob(service *budget.Service, pool *pgxpool.Pool, logger *slog.Logger) *BudgetAlertJob {
	return &BudgetAlertJob{
		Budgets: service,
		Pool:    pool,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the alert sweep.
func (j *BudgetAlertJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Budgets == nil || j.Pool == nil {
		return errors.New("budget alert: handler not configured")
	}
	var payload BudgetAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	month := j.clock()
	if payload.Month != "" {
		parsed, err := time.Parse("2006-01", payload.Month)
		if err != nil {
			return asynq.SkipRetry
		}
		month = parsed
	}

	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT user_id FROM budgets`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var alerts int
	for _, userID := range userIDs {
		over, err := j.Budgets.OverBudget(ctx, userID, month)
		if err != nil {
			j.Logger.Error("budget alert sweep failed for user",
				slog.Int64("user_id", userID), slog.Any("error", err))
			continue
		}
		for _, report := range over {
			alerts++
			j.Logger.Warn("budget exceeded",
				slog.Int64("user_id", userID),
				slog.String("category", report.Budget.Category),
				slog.String("variance", report.Variance.String()),
			)
		}
	}
	j.Logger.Info("budget alert sweep complete",
		slog.Int("users", len(userIDs)), slog.Int("alerts", alerts))
	return nil
}
