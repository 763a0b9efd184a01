package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueScan flags sent invoices past their due date.
	TaskOverdueScan = "invoices:overdue_scan"
	// TaskCreditKeysCleanup prunes consumed funding idempotency keys.
	TaskCreditKeysCleanup = "wallets:credit_keys_cleanup"
	// TaskBudgetAlert reports budgets blown in the current month.
	TaskBudgetAlert = "budgets:alert_scan"
)

// OverdueScanPayload parameterizes the overdue invoice scan.
type OverdueScanPayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// NewOverdueScanTask constructs an Asynq task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data), nil
}

// CreditKeysCleanupPayload controls how much idempotency history to keep.
// Keys younger than RetentionDays stay so late redeliveries remain no-ops.
type CreditKeysCleanupPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewCreditKeysCleanupTask constructs an Asynq task.
func NewCreditKeysCleanupTask(payload CreditKeysCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCreditKeysCleanup, data), nil
}

// BudgetAlertPayload selects the month to evaluate.
type BudgetAlertPayload struct {
	Month string `json:"month,omitempty"`
}

// NewBudgetAlertTask constructs an Asynq task.
func NewBudgetAlertTask(payload BudgetAlertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBudgetAlert, data), nil
}
