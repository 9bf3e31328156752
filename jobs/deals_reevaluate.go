package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/trainops/trainops-erp/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DealReevaluator re-runs margin approval for open deals.
type DealReevaluator interface {
	ReevaluateOpen(ctx context.Context) (int, error)
}

// DealsReevaluateJob handles TaskDealsReevaluate.
type DealsReevaluateJob struct {
	Deals   DealReevaluator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDealsReevaluateJob wires dependencies for the handler. A nil metrics uses the
// process-wide default.
func NewDealsReevaluateJob(deals DealReevaluator, logger *slog.Logger, metrics *jobmetrics.Metrics) *DealsReevaluateJob {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	return &DealsReevaluateJob{Deals: deals, Logger: logger, Metrics: metrics}
}

// Handle processes deal re-evaluation tasks.
func (j *DealsReevaluateJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Deals == nil {
		return errors.New("deals reevaluate: handler not configured")
	}
	var payload DealsReevaluatePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.Metrics.Track(TaskDealsReevaluate)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger.With(slog.String("task", TaskDealsReevaluate), slog.String("reason", payload.Reason))
	count, err := j.Deals.ReevaluateOpen(ctx)
	j.Metrics.AddItems(TaskDealsReevaluate, count)
	if err != nil {
		logger.Error("reevaluate open deals", slog.Int("processed", count), slog.Any("error", err))
		return err
	}
	logger.Info("open deals reevaluated", slog.Int("processed", count))
	return nil
}
