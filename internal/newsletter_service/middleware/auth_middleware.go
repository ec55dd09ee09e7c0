package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const authenticatedUserContextKey = ContextKey("authenticatedUser")

// AuthenticatedUser is what the auth middleware injects into the request
// context for downstream handlers.
type AuthenticatedUser struct {
	ID       uuid.UUID
	Username string
}

// TokenValidator validates a bearer token and resolves the user behind it.
// app.AuthService satisfies it.
type TokenValidator interface {
	ValidateToken(tokenString string) (uuid.UUID, string, error)
}

// Auth guards a route group with bearer-token authentication.
func Auth(validator TokenValidator, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.WarnContext(r.Context(), "invalid Authorization header format")
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			userID, username, err := validator.ValidateToken(parts[1])
			if err != nil {
				logger.WarnContext(r.Context(), "token validation failed", "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authenticatedUserContextKey, AuthenticatedUser{
				ID:       userID,
				Username: username,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user set by Auth.
func UserFromContext(ctx context.Context) (AuthenticatedUser, bool) {
	user, ok := ctx.Value(authenticatedUserContextKey).(AuthenticatedUser)
	return user, ok
}
