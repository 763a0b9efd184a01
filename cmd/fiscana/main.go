package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Nanlep/Fiscana-sub000/internal/app"
	"github.com/Nanlep/Fiscana-sub000/internal/budget"
	"github.com/Nanlep/Fiscana-sub000/internal/fx"
	"github.com/Nanlep/Fiscana-sub000/internal/invoices"
	"github.com/Nanlep/Fiscana-sub000/internal/ledger"
	"github.com/Nanlep/Fiscana-sub000/internal/networth"
	"github.com/Nanlep/Fiscana-sub000/internal/observability"
	"github.com/Nanlep/Fiscana-sub000/internal/rail"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
	"github.com/Nanlep/Fiscana-sub000/internal/wallet"
	"github.com/Nanlep/Fiscana-sub000/internal/webhook"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.New()
	auditLogger := shared.NewAuditLogger(dbpool)

	fxRepo := fx.NewRepository(dbpool)
	fxService := fx.NewService(fxRepo, redisClient, cfg.FXCacheTTL, auditLogger, logger)
	fxHandler := fx.NewHandler(logger, fxService)

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, fxService, auditLogger, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	payoutRail := rail.NewClient(cfg.RailBaseURL, cfg.RailSecret, cfg.RailTimeout, logger)

	walletRepo := wallet.NewRepository(dbpool)
	walletService := wallet.NewService(walletRepo, payoutRail, auditLogger, logger)
	walletHandler := wallet.NewHandler(logger, walletService)

	invoiceRepo := invoices.NewRepository(dbpool)
	invoiceService := invoices.NewService(invoiceRepo, fxService, auditLogger, logger)
	invoiceHandler := invoices.NewHandler(logger, invoiceService)

	webhookProcessor := webhook.NewProcessor(cfg.WebhookSecret, walletService, cfg.WebhookTimeout, logger)
	webhookHandler := webhook.NewHandler(logger, webhookProcessor, metrics)

	budgetRepo := budget.NewRepository(dbpool)
	budgetService := budget.NewService(budgetRepo, fxService, redisClient, 30*time.Second, logger)
	budgetHandler := budget.NewHandler(budgetService)

	networthRepo := networth.NewRepository(dbpool)
	networthService := networth.NewService(networthRepo, fxService)
	networthHandler := networth.NewHandler(networthService)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		FXHandler:       fxHandler,
		LedgerHandler:   ledgerHandler,
		InvoiceHandler:  invoiceHandler,
		WalletHandler:   walletHandler,
		WebhookHandler:  webhookHandler,
		BudgetHandler:   budgetHandler,
		NetWorthHandler: networthHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
