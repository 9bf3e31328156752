package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/trainops/trainops-erp/internal/jobs"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type reevaluatorStub struct {
	count int
	err   error
	calls int
}

func (s *reevaluatorStub) ReevaluateOpen(ctx context.Context) (int, error) {
	s.calls++
	return s.count, s.err
}

type warmerStub struct {
	fiscalYear string
	count      int
	err        error
}

func (s *warmerStub) WarmCumulative(ctx context.Context, fiscalYear string) (int, error) {
	s.fiscalYear = fiscalYear
	return s.count, s.err
}

func TestDealsReevaluateJob(t *testing.T) {
	stub := &reevaluatorStub{count: 4}
	job := NewDealsReevaluateJob(stub, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewDealsReevaluateTask("nightly")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, stub.calls)

	stub.err = errors.New("db down")
	require.ErrorContains(t, job.Handle(context.Background(), task), "db down")
}

func TestDealsReevaluateJobRejectsBadPayload(t *testing.T) {
	stub := &reevaluatorStub{}
	job := NewDealsReevaluateJob(stub, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Handle(context.Background(), asynq.NewTask(TaskDealsReevaluate, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, stub.calls)
}

func TestPayablesWarmupJobPassesFiscalYear(t *testing.T) {
	stub := &warmerStub{count: 2}
	job := NewPayablesWarmupJob(stub, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewPayablesWarmupTask("2024-25")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "2024-25", stub.fiscalYear)
}

type cleanerStub struct {
	retention time.Duration
	removed   int64
}

func (s *cleanerStub) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	s.retention = retention
	return s.removed, nil
}

func TestIdempotencyCleanupJobRetention(t *testing.T) {
	stub := &cleanerStub{removed: 12}
	job := NewIdempotencyCleanupJob(stub, 48*time.Hour, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 48*time.Hour, stub.retention)

	task, err = NewIdempotencyCleanupTask(6)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 6*time.Hour, stub.retention)

	require.Equal(t, 7*24*time.Hour, NewIdempotencyCleanupJob(stub, 0, nil, nil).Retention)
}

func TestNilJobsFail(t *testing.T) {
	var d *DealsReevaluateJob
	require.Error(t, d.Handle(context.Background(), asynq.NewTask(TaskDealsReevaluate, nil)))
	var p *PayablesWarmupJob
	require.Error(t, p.Handle(context.Background(), asynq.NewTask(TaskPayablesWarmCumulative, nil)))
	var c *IdempotencyCleanupJob
	require.Error(t, c.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
}

func TestDefaultTask(t *testing.T) {
	task, err := DefaultTask(TaskPayablesWarmCumulative)
	require.NoError(t, err)
	require.Equal(t, TaskPayablesWarmCumulative, task.Type())

	task, err = DefaultTask(TaskIdempotencyCleanup)
	require.NoError(t, err)
	require.Equal(t, TaskIdempotencyCleanup, task.Type())

	_, err = DefaultTask("mail:send")
	require.ErrorIs(t, err, ErrUnknownTask)
}

type inspectorStub struct {
	info *asynq.QueueInfo
	err  error
}

func (s inspectorStub) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthHandler(t *testing.T) {
	get := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		h.MountRoutes(r)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rr
	}

	rr := get(NewHandler(inspectorStub{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Retry: 1}}, discardLogger()))
	require.Equal(t, http.StatusOK, rr.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, queueHealth{Queue: "default", Pending: 3, Retry: 1}, body)

	rr = get(NewHandler(nil, discardLogger()))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = get(NewHandler(inspectorStub{err: errors.New("redis down")}, discardLogger()))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLogTasksPassesThrough(t *testing.T) {
	calls := 0
	inner := asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		calls++
		if task.Type() == "fail" {
			return errors.New("boom")
		}
		return nil
	})
	h := logTasks(discardLogger())(inner)

	require.NoError(t, h.ProcessTask(t.Context(), asynq.NewTask(TaskDealsReevaluate, nil)))
	require.EqualError(t, h.ProcessTask(t.Context(), asynq.NewTask("fail", nil)), "boom")
	require.Equal(t, 2, calls)
}

func TestNilWorkerRun(t *testing.T) {
	var w *Worker
	require.Error(t, w.Run(t.Context()))
}
