package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/domain"
)

var (
	ErrIssueNotFound      = errors.New("newsletter issue not found")
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrDuplicateEmail     = errors.New("email is already subscribed")
	ErrTokenNotFound      = errors.New("subscription token not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrTaskNotClaimed     = errors.New("delivery task not claimed in this transaction")
)

// Tx is the transaction-scoped capability passed from the idempotency gate
// into command handlers and from the worker into queue operations. It is the
// subset of pgx.Tx the repositories need, narrow enough to fake in tests.
// pgx.Tx satisfies it.
type Tx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager opens transactions against the shared store. The idempotency
// gate needs repeatable read so two concurrent requests with the same key
// cannot both observe a successful reservation.
type TxManager interface {
	Begin(ctx context.Context) (Tx, error)
	BeginRepeatableRead(ctx context.Context) (Tx, error)
}

// IdempotencyRepository is the command store: one row per
// (user_id, idempotency_key), inserted empty as a reservation and populated
// with the response exactly once.
type IdempotencyRepository interface {
	// Reserve inserts the reservation row if absent. It reports true when the
	// row was inserted, false when a prior reservation exists; the caller must
	// then replay the saved response instead of re-executing.
	Reserve(ctx context.Context, tx Tx, userID uuid.UUID, key domain.IdempotencyKey) (bool, error)
	// SaveResponse populates the response columns. It must be the final
	// statement before the caller commits.
	SaveResponse(ctx context.Context, tx Tx, userID uuid.UUID, key domain.IdempotencyKey, resp *domain.StoredResponse) error
	// GetSavedResponse returns the committed response, or nil when the key is
	// unknown or the reservation was never populated.
	GetSavedResponse(ctx context.Context, userID uuid.UUID, key domain.IdempotencyKey) (*domain.StoredResponse, error)
}

// DeliveryQueueRepository is the transactional outbox of pending deliveries.
type DeliveryQueueRepository interface {
	// Enqueue adds one (issue, recipient) task. Always called inside the
	// command's transaction, never standalone.
	Enqueue(ctx context.Context, tx Tx, issueID uuid.UUID, subscriberEmail string) error
	// ClaimOne leases one pending task for the duration of tx, skipping tasks
	// leased by other workers without blocking on them. Nil when the queue is
	// empty. Rolling back tx releases the lease.
	ClaimOne(ctx context.Context, tx Tx) (*domain.DeliveryTask, error)
	// Retire deletes a claimed task; the delete becomes durable when tx
	// commits.
	Retire(ctx context.Context, tx Tx, task *domain.DeliveryTask) error
}

type IssueRepository interface {
	Insert(ctx context.Context, tx Tx, issue *domain.NewsletterIssue) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.NewsletterIssue, error)
}

type SubscriberRepository interface {
	Insert(ctx context.Context, tx Tx, sub *domain.Subscriber) error
	StoreToken(ctx context.Context, tx Tx, subscriberID uuid.UUID, token string) error
	GetIDByToken(ctx context.Context, token string) (uuid.UUID, error)
	ConfirmByID(ctx context.Context, id uuid.UUID) error
	// ListConfirmedEmails reads within tx so the recipient set is fixed at
	// command-commit time.
	ListConfirmedEmails(ctx context.Context, tx Tx) ([]string, error)
}

type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}
