package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/trainops/trainops-erp/internal/jobs"
)

// CumulativeWarmer reloads cached vendor totals for a fiscal year.
type CumulativeWarmer interface {
	WarmCumulative(ctx context.Context, fiscalYear string) (int, error)
}

// PayablesWarmupJob handles TaskPayablesWarmCumulative.
type PayablesWarmupJob struct {
	Payables CumulativeWarmer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewPayablesWarmupJob wires dependencies for the handler.
func NewPayablesWarmupJob(payables CumulativeWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *PayablesWarmupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	return &PayablesWarmupJob{Payables: payables, Logger: logger, Metrics: metrics}
}

// Handle processes cumulative warmup tasks.
func (j *PayablesWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Payables == nil {
		return errors.New("payables warmup: handler not configured")
	}
	var payload PayablesWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.Metrics.Track(TaskPayablesWarmCumulative)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger.With(slog.String("task", TaskPayablesWarmCumulative), slog.String("fiscal_year", payload.FiscalYear))
	count, err := j.Payables.WarmCumulative(ctx, payload.FiscalYear)
	j.Metrics.AddItems(TaskPayablesWarmCumulative, count)
	if err != nil {
		logger.Error("warm cumulative totals", slog.Int("warmed", count), slog.Any("error", err))
		return err
	}
	logger.Info("cumulative totals warmed", slog.Int("vendors", count))
	return nil
}
