package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/app"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/domain"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/middleware"
)

// HeaderIdempotencyKey is the request header carrying the client-supplied
// idempotency key for the publish command.
const HeaderIdempotencyKey = "Idempotency-Key"

// IssuePublisher is the command boundary consumed by the handler.
// app.PublishService satisfies it.
type IssuePublisher interface {
	PublishIssue(ctx context.Context, userID uuid.UUID, rawKey string, input app.PublishIssueInput) (*domain.StoredResponse, bool, error)
}

// NewsletterHandler handles admin newsletter publishing.
type NewsletterHandler struct {
	publisher IssuePublisher
	logger    *slog.Logger
}

func NewNewsletterHandler(publisher IssuePublisher, logger *slog.Logger) *NewsletterHandler {
	return &NewsletterHandler{
		publisher: publisher,
		logger:    logger.With("handler", "newsletter"),
	}
}

func (h *NewsletterHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req PublishIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	resp, replayed, err := h.publisher.PublishIssue(r.Context(), user.ID, r.Header.Get(HeaderIdempotencyKey), app.PublishIssueInput{
		Title:       req.Title,
		HTMLContent: req.HTMLContent,
		TextContent: req.TextContent,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidIdempotencyKey), errors.Is(err, domain.ErrInvalidIssue):
			jsonError(w, err.Error(), http.StatusBadRequest)
		default:
			// Transactional/infra failure: everything rolled back, safe to
			// retry with the same key.
			h.logger.ErrorContext(r.Context(), "publish command failed", "error", err)
			jsonError(w, "failed to publish newsletter issue", http.StatusInternalServerError)
		}
		return
	}

	if replayed {
		h.logger.InfoContext(r.Context(), "served replayed publish response", "user_id", user.ID)
	}
	writeStoredResponse(w, resp)
}

// writeStoredResponse reconstructs a saved response byte-for-byte: status,
// every header pair in order, then the body.
func writeStoredResponse(w http.ResponseWriter, resp *domain.StoredResponse) {
	for _, h := range resp.Headers {
		w.Header().Add(h.Name, string(h.Value))
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func jsonResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
