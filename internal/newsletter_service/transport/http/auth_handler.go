package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/app"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/middleware"
)

// Authenticator is the boundary consumed by the handler. app.AuthService
// satisfies it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error
}

type AuthHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

func NewAuthHandler(auth Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With("handler", "auth"),
	}
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, app.ErrInvalidCredentials) {
			jsonError(w, "invalid username or password", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(r.Context(), "login failed", "error", err)
		jsonError(w, "login failed", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, LoginResponse{AccessToken: token})
}

func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), user.Username, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidCredentials):
			jsonError(w, "current password is incorrect", http.StatusUnauthorized)
		case errors.Is(err, app.ErrWeakPassword):
			jsonError(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.ErrorContext(r.Context(), "change password failed", "error", err)
			jsonError(w, "failed to change password", http.StatusInternalServerError)
		}
		return
	}

	jsonResponse(w, http.StatusOK, messageResponse{Message: "password updated"})
}
