package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/domain"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/repository"
)

// SubscriptionManager is the boundary consumed by the handler.
// app.SubscriptionService satisfies it.
type SubscriptionManager interface {
	Subscribe(ctx context.Context, name, email string) (*domain.Subscriber, error)
	Confirm(ctx context.Context, rawToken string) error
}

type SubscriptionHandler struct {
	subscriptions SubscriptionManager
	logger        *slog.Logger
}

func NewSubscriptionHandler(subscriptions SubscriptionManager, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		logger:        logger.With("handler", "subscription"),
	}
}

func (h *SubscriptionHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	sub, err := h.subscriptions.Subscribe(r.Context(), req.Name, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSubscriberEmail), errors.Is(err, domain.ErrInvalidSubscriberName):
			jsonError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrDuplicateEmail):
			jsonError(w, "email is already subscribed", http.StatusConflict)
		default:
			h.logger.ErrorContext(r.Context(), "subscribe failed", "error", err)
			jsonError(w, "failed to create subscription", http.StatusInternalServerError)
		}
		return
	}

	jsonResponse(w, http.StatusCreated, SubscribeResponse{ID: sub.ID.String()})
}

func (h *SubscriptionHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("subscription_token")
	if err := h.subscriptions.Confirm(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidToken):
			jsonError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrTokenNotFound):
			jsonError(w, "unknown subscription token", http.StatusUnauthorized)
		default:
			h.logger.ErrorContext(r.Context(), "confirm failed", "error", err)
			jsonError(w, "failed to confirm subscription", http.StatusInternalServerError)
		}
		return
	}

	jsonResponse(w, http.StatusOK, messageResponse{Message: "subscription confirmed"})
}
