package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Nanlep/Fiscana-sub000/internal/app"
	"github.com/Nanlep/Fiscana-sub000/internal/budget"
	"github.com/Nanlep/Fiscana-sub000/internal/fx"
	"github.com/Nanlep/Fiscana-sub000/internal/invoices"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
	"github.com/Nanlep/Fiscana-sub000/internal/wallet"
	"github.com/Nanlep/Fiscana-sub000/jobs"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	auditLogger := shared.NewAuditLogger(pool)

	fxService := fx.NewService(fx.NewRepository(pool), redisClient, cfg.FXCacheTTL, auditLogger, logger)
	invoiceService := invoices.NewService(invoices.NewRepository(pool), fxService, auditLogger, logger)
	// jobs never reach the payout rail; withdrawals are request-path only
	walletService := wallet.NewService(wallet.NewRepository(pool), nil, auditLogger, logger)
	budgetService := budget.NewService(budget.NewRepository(pool), fxService, redisClient, 30*time.Second, logger)

	overdueJob := jobs.NewOverdueScanJob(invoiceService, logger)
	cleanupJob := jobs.NewCreditsCleanupJob(walletService, logger)
	alertJob := jobs.NewBudgetAlertJob(budgetService, pool, logger)

	overdueTask, err := jobs.NewOverdueScanTask(jobs.OverdueScanPayload{})
	if err != nil {
		logger.Error("build overdue task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewCreditKeysCleanupTask(jobs.CreditKeysCleanupPayload{RetentionDays: cfg.CreditKeyRetentionDays})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}
	alertTask, err := jobs.NewBudgetAlertTask(jobs.BudgetAlertPayload{})
	if err != nil {
		logger.Error("build alert task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOverdueScan, Handler: overdueJob.Handle},
			{Type: jobs.TaskCreditKeysCleanup, Handler: cleanupJob.Handle},
			{Type: jobs.TaskBudgetAlert, Handler: alertJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 6 * * *", Task: overdueTask},
			{Spec: "30 2 * * *", Task: cleanupTask},
			{Spec: "0 7 1 * *", Task: alertTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
