package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/middleware"
)

// NewRouter assembles the API service routes. The /admin group is guarded
// by bearer-token auth; everything else is public.
func NewRouter(
	logger *slog.Logger,
	validator middleware.TokenValidator,
	newsletterHandler *NewsletterHandler,
	subscriptionHandler *SubscriptionHandler,
	authHandler *AuthHandler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", authHandler.HandleLogin)
	r.Post("/subscriptions", subscriptionHandler.HandleSubscribe)
	r.Get("/subscriptions/confirm", subscriptionHandler.HandleConfirm)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(validator, logger))
		r.Post("/newsletters", newsletterHandler.HandlePublish)
		r.Post("/password", authHandler.HandleChangePassword)
	})

	return r
}
