package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDealsReevaluate re-evaluates every deal still waiting on an approver.
	TaskDealsReevaluate = "deals:reevaluate"
	// TaskPayablesWarmCumulative refreshes cached vendor cumulative totals.
	TaskPayablesWarmCumulative = "payables:warm-cumulative"
	// TaskIdempotencyCleanup drops expired Idempotency-Key claims.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// DealsReevaluatePayload is currently empty; Reason is logged only.
type DealsReevaluatePayload struct {
	Reason string `json:"reason,omitempty"`
}

// PayablesWarmupPayload selects the fiscal year to warm. Empty means current.
type PayablesWarmupPayload struct {
	FiscalYear string `json:"fiscal_year,omitempty"`
}

// IdempotencyCleanupPayload overrides the retention window. Zero means the worker default.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewDealsReevaluateTask constructs the Asynq task.
func NewDealsReevaluateTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(DealsReevaluatePayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDealsReevaluate, data), nil
}

// NewPayablesWarmupTask constructs the Asynq task.
func NewPayablesWarmupTask(fiscalYear string) (*asynq.Task, error) {
	data, err := json.Marshal(PayablesWarmupPayload{FiscalYear: fiscalYear})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayablesWarmCumulative, data), nil
}

// NewIdempotencyCleanupTask constructs the Asynq task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
