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

	"golang.org/x/sync/errgroup"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/app"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/provider"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/repository/postgres"
	transporthttp "github.com/lettercast/newsletter-platform/internal/newsletter_service/transport/http"
	"github.com/lettercast/newsletter-platform/internal/platform/config"
	"github.com/lettercast/newsletter-platform/internal/platform/database"
	"github.com/lettercast/newsletter-platform/internal/platform/logger"
)

const (
	serviceName     = "newsletter-api-service"
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
	idempotencyRepo := postgres.NewPgIdempotencyRepository(dbPool)
	issueRepo := postgres.NewPgIssueRepository(dbPool)
	queueRepo := postgres.NewPgDeliveryQueueRepository(dbPool)
	subscriberRepo := postgres.NewPgSubscriberRepository(dbPool)
	userRepo := postgres.NewPgUserRepository(dbPool)

	publishService := app.NewPublishService(txm, idempotencyRepo, issueRepo, queueRepo, subscriberRepo, appLogger)
	subscriptionService := app.NewSubscriptionService(txm, subscriberRepo, emailProvider, appLogger, cfg.BaseURL)
	authService := app.NewAuthService(userRepo, app.AuthConfig{
		JWTSecret:   cfg.JWTSecret,
		TokenExpiry: time.Duration(cfg.JWTExpiryHours) * time.Hour,
	}, appLogger)

	router := transporthttp.NewRouter(
		appLogger,
		authService,
		transporthttp.NewNewsletterHandler(publishService, appLogger),
		transporthttp.NewSubscriptionHandler(subscriptionService, appLogger),
		transporthttp.NewAuthHandler(authService, appLogger),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.APIServicePort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Shutdown signal received, draining HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service terminated with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Service shut down successfully")
}

// newEmailProvider picks the REST provider when an upstream is configured
// and falls back to the mock for local runs.
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
