package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/quantum-checkout/config"
	"github.com/d60-Lab/quantum-checkout/internal/api"
	"github.com/d60-Lab/quantum-checkout/internal/api/handler"
	"github.com/d60-Lab/quantum-checkout/internal/gateway"
	"github.com/d60-Lab/quantum-checkout/internal/mailer"
	"github.com/d60-Lab/quantum-checkout/internal/repository"
	"github.com/d60-Lab/quantum-checkout/internal/service"
	"github.com/d60-Lab/quantum-checkout/pkg/database"
	"github.com/d60-Lab/quantum-checkout/pkg/logger"
	"github.com/d60-Lab/quantum-checkout/pkg/tracing"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func main() {
	cfg := must(config.Load())
	if err := logger.Init(cfg.Env); err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing := must(tracing.Init(ctx, "quantum-checkout", cfg.OTLPEndpoint))
	defer func() { _ = shutdownTracing(context.Background()) }()

	db := must(database.InitDB(cfg))

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, duplicate-delivery guard disabled", zap.Error(err))
			rdb = nil
		}
	}

	// repositories
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	emailQueueRepo := repository.NewEmailQueueRepository(db)

	// outbound collaborators
	var gw gateway.Client
	if cfg.PaystackSecretKey != "" {
		gw = gateway.NewPaystackClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)
	} else {
		logger.Warn("paystack secret key not configured, server-side initialize disabled")
	}
	var sender mailer.Sender
	if cfg.SendgridAPIKey != "" && cfg.SenderEmail != "" {
		sender = mailer.NewSendGridSender(cfg.SendgridAPIKey, cfg.SenderEmail)
	} else {
		logger.Warn("sendgrid not configured, notifications will queue only")
	}

	// services
	notifier := service.NewNotifier(sender, emailQueueRepo, cfg.OwnerEmail, 1024)
	stopNotifier := notifier.Start(2)
	admin := service.NewAdminNotifier(cfg.AdminPaymentWebhookURL)
	dedup := service.NewDedup(rdb, 24*time.Hour)
	checkoutSvc := service.NewCheckoutService(orderRepo, productRepo, paymentRepo, gw, admin, cfg.BaseURL)
	reconcileSvc := service.NewReconcileService(orderRepo, paymentRepo, gw, dedup, notifier, admin)

	h := handler.New(cfg, checkoutSvc, reconcileSvc, notifier, paymentRepo, gw)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(cfg, h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := stopNotifier(shutdownCtx); err != nil {
		logger.Warn("notifier shutdown failed", zap.Error(err))
	}
}
