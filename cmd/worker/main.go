package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/trainops/trainops-erp/internal/app"
	"github.com/trainops/trainops-erp/internal/deals"
	jobmetrics "github.com/trainops/trainops-erp/internal/jobs"
	"github.com/trainops/trainops-erp/internal/observability"
	"github.com/trainops/trainops-erp/internal/payables"
	"github.com/trainops/trainops-erp/internal/platform/cache"
	"github.com/trainops/trainops-erp/internal/platform/db"
	"github.com/trainops/trainops-erp/internal/shared"
	"github.com/trainops/trainops-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(nil)

	dealsService := deals.NewService(deals.NewRepository(pool), shared.NewApprovalRecorder(pool, logger), metrics, logger)
	payablesService := payables.NewService(
		payables.NewRepository(pool),
		payables.NewCumulativeCache(redisClient, cfg.CacheTTL),
		metrics,
		logger,
	)

	reevaluateJob := jobs.NewDealsReevaluateJob(dealsService, logger, jobMetrics)
	warmupJob := jobs.NewPayablesWarmupJob(payablesService, logger, jobMetrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), cfg.IdempotencyRetention, logger, jobMetrics)

	reevaluateTask, err := jobs.NewDealsReevaluateTask("scheduled")
	if err != nil {
		logger.Error("build reevaluate task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewPayablesWarmupTask("")
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(0)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDealsReevaluate, Handler: reevaluateJob.Handle},
			{Type: jobs.TaskPayablesWarmCumulative, Handler: warmupJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DealReevaluateCron, Task: reevaluateTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.PayablesWarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IdempotencyCleanupCron, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
