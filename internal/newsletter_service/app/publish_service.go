package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/domain"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/repository"
)

// ErrNoSavedResponse means a duplicate idempotency key was found but its
// response columns were never populated. With full-rollback semantics this
// only happens while the first attempt is still in flight; callers surface
// it as a retryable failure.
var ErrNoSavedResponse = errors.New("idempotency key is reserved but has no saved response")

// PublishIssueInput is the validated-later payload of a publish command.
type PublishIssueInput struct {
	Title       string
	HTMLContent string
	TextContent string
}

// PublishService is the idempotency gate for the publish-newsletter command.
// It owns the transaction that links command execution to delivery-queue
// population: issue insert, task enqueues and the saved response all commit
// in one atomic unit, or none of them do.
type PublishService struct {
	txm             repository.TxManager
	idempotencyRepo repository.IdempotencyRepository
	issueRepo       repository.IssueRepository
	queueRepo       repository.DeliveryQueueRepository
	subscriberRepo  repository.SubscriberRepository
	logger          *slog.Logger
}

func NewPublishService(
	txm repository.TxManager,
	idempotencyRepo repository.IdempotencyRepository,
	issueRepo repository.IssueRepository,
	queueRepo repository.DeliveryQueueRepository,
	subscriberRepo repository.SubscriberRepository,
	logger *slog.Logger,
) *PublishService {
	return &PublishService{
		txm:             txm,
		idempotencyRepo: idempotencyRepo,
		issueRepo:       issueRepo,
		queueRepo:       queueRepo,
		subscriberRepo:  subscriberRepo,
		logger:          logger.With("component", "publish_service"),
	}
}

type publishedBody struct {
	NewsletterIssueID  string `json:"newsletter_issue_id"`
	EnqueuedDeliveries int    `json:"enqueued_deliveries"`
}

// PublishIssue executes the publish command under the idempotency gate.
// The returned response must be written to the client verbatim; replayed
// reports whether it came from the command store instead of fresh execution.
//
// Retrying with the same key after any failure behaves exactly like a first
// attempt: a failed transaction rolls back the reservation together with
// every side effect.
func (s *PublishService) PublishIssue(ctx context.Context, userID uuid.UUID, rawKey string, input PublishIssueInput) (resp *domain.StoredResponse, replayed bool, err error) {
	// Validation happens before any reservation is taken.
	key, err := domain.ParseIdempotencyKey(rawKey)
	if err != nil {
		return nil, false, err
	}
	issue, err := domain.NewNewsletterIssue(input.Title, input.HTMLContent, input.TextContent)
	if err != nil {
		return nil, false, err
	}

	tx, err := s.txm.BeginRepeatableRead(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin publish transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	inserted, err := s.idempotencyRepo.Reserve(ctx, tx, userID, key)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// A prior request holds this key: never re-execute, replay instead.
		_ = tx.Rollback(ctx)
		saved, err := s.idempotencyRepo.GetSavedResponse(ctx, userID, key)
		if err != nil {
			return nil, false, err
		}
		if saved == nil {
			return nil, false, ErrNoSavedResponse
		}
		s.logger.InfoContext(ctx, "replaying saved response for duplicate idempotency key",
			"user_id", userID, "idempotency_key", key.String())
		publishReplaysCounter.Inc()
		return saved, true, nil
	}

	if err := s.issueRepo.Insert(ctx, tx, issue); err != nil {
		return nil, false, err
	}

	// The recipient set is fixed here, inside the transaction: tasks are
	// never added outside it, and none become visible before commit.
	emails, err := s.subscriberRepo.ListConfirmedEmails(ctx, tx)
	if err != nil {
		return nil, false, err
	}
	for _, email := range emails {
		if err := s.queueRepo.Enqueue(ctx, tx, issue.ID, email); err != nil {
			return nil, false, err
		}
	}

	resp, err = buildPublishedResponse(issue.ID, len(emails))
	if err != nil {
		return nil, false, err
	}
	if err := s.idempotencyRepo.SaveResponse(ctx, tx, userID, key, resp); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit publish transaction: %w", err)
	}
	committed = true

	issuesPublishedCounter.Inc()
	s.logger.InfoContext(ctx, "newsletter issue published",
		"newsletter_issue_id", issue.ID, "enqueued_deliveries", len(emails), "user_id", userID)
	return resp, false, nil
}

func buildPublishedResponse(issueID uuid.UUID, enqueued int) (*domain.StoredResponse, error) {
	body, err := json.Marshal(publishedBody{
		NewsletterIssueID:  issueID.String(),
		EnqueuedDeliveries: enqueued,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal publish response: %w", err)
	}
	return &domain.StoredResponse{
		StatusCode: 201,
		Headers: []domain.HeaderPair{
			{Name: "Content-Type", Value: []byte("application/json")},
		},
		Body: body,
	}, nil
}
