package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/app"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/provider"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/repository/postgres"
	"github.com/lettercast/newsletter-platform/internal/platform/config"
	"github.com/lettercast/newsletter-platform/internal/platform/database"
	"github.com/lettercast/newsletter-platform/internal/platform/logger"
)

const (
	serviceName     = "issue-delivery-service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(serviceName, cfg.LogLevel)
	appLogger.Info("Starting service...", "log_level", cfg.LogLevel)

	mainCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Database connection pool initialized")

	emailProvider := newEmailProvider(cfg, appLogger)
	appLogger.Info("Email provider initialized", "provider", emailProvider.GetName())

	txm := postgres.NewPgxTxManager(dbPool)
	queueRepo := postgres.NewPgDeliveryQueueRepository(dbPool)
	issueRepo := postgres.NewPgIssueRepository(dbPool)

	worker := app.NewDeliveryWorker(txm, queueRepo, issueRepo, emailProvider, appLogger, app.DeliveryWorkerConfig{
		EmptyQueueSleep: time.Duration(cfg.WorkerEmptyQueueSleepSeconds) * time.Second,
		ErrorSleep:      time.Duration(cfg.WorkerErrorSleepSeconds) * time.Second,
		SendTimeout:     time.Duration(cfg.EmailSendTimeoutSeconds) * time.Second,
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WorkerMetricsPort),
		Handler: metricsMux,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		return worker.Run(groupCtx)
	})

	g.Go(func() error {
		appLogger.Info("Metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service terminated with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Service shut down successfully")
}

func newEmailProvider(cfg *config.Config, appLogger *slog.Logger) provider.EmailProvider {
	if cfg.EmailProviderBaseURL == "" {
		appLogger.Warn("EMAIL_PROVIDER_BASE_URL not configured; using mock email provider")
		return provider.NewMockEmailProvider(appLogger, false, 0)
	}
	return provider.NewRestEmailProvider(
		appLogger,
		cfg.EmailProviderBaseURL,
		cfg.EmailProviderAPIKey,
		cfg.EmailSenderAddress,
		cfg.EmailSenderName,
		time.Duration(cfg.EmailSendTimeoutSeconds)*time.Second,
		nil,
	)
}
