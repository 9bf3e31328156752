package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/trainops/trainops-erp/internal/app"
	"github.com/trainops/trainops-erp/internal/deals"
	"github.com/trainops/trainops-erp/internal/invoicing"
	"github.com/trainops/trainops-erp/internal/observability"
	"github.com/trainops/trainops-erp/internal/payables"
	"github.com/trainops/trainops-erp/internal/platform/cache"
	"github.com/trainops/trainops-erp/internal/platform/db"
	"github.com/trainops/trainops-erp/internal/shared"
	taxcalchttp "github.com/trainops/trainops-erp/internal/taxcalc/http"
	"github.com/trainops/trainops-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.AutoMigrate {
		if err := db.ApplySchema(ctx, dbpool); err != nil {
			logger.Error("apply schema", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, cumulative cache will fall through", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	payablesCache := payables.NewCumulativeCache(redisClient, cfg.CacheTTL)
	payablesService := payables.NewService(payables.NewRepository(dbpool), payablesCache, metrics, logger)
	dealsService := deals.NewService(deals.NewRepository(dbpool), approvalRecorder, metrics, logger)
	invoicingService := invoicing.NewService(invoicing.NewRepository(dbpool), dealsService, metrics, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		TaxHandler:       taxcalchttp.NewHandler(logger, metrics),
		PayablesHandler:  payables.NewHandler(logger, payablesService, idempotencyStore),
		DealsHandler:     deals.NewHandler(logger, dealsService),
		InvoicingHandler: invoicing.NewHandler(logger, invoicingService),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
