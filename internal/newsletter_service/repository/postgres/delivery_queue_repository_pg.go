package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/domain"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/repository"
)

type pgDeliveryQueueRepository struct {
	db *pgxpool.Pool
}

// NewPgDeliveryQueueRepository creates the PostgreSQL delivery queue.
func NewPgDeliveryQueueRepository(db *pgxpool.Pool) repository.DeliveryQueueRepository {
	return &pgDeliveryQueueRepository{db: db}
}

func (r *pgDeliveryQueueRepository) Enqueue(ctx context.Context, tx repository.Tx, issueID uuid.UUID, subscriberEmail string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO issue_delivery_queue (newsletter_issue_id, subscriber_email)
		VALUES ($1, $2)
	`, issueID, subscriberEmail)
	if err != nil {
		return fmt.Errorf("enqueue delivery task: %w", err)
	}
	return nil
}

// ClaimOne leases one pending task with a skip-locked scan: rows locked by
// other workers are skipped instead of blocked on, so workers never
// serialize on each other. No ORDER BY: claim order is unspecified.
func (r *pgDeliveryQueueRepository) ClaimOne(ctx context.Context, tx repository.Tx) (*domain.DeliveryTask, error) {
	var task domain.DeliveryTask
	err := tx.QueryRow(ctx, `
		SELECT newsletter_issue_id, subscriber_email
		FROM issue_delivery_queue
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&task.NewsletterIssueID, &task.SubscriberEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim delivery task: %w", err)
	}
	return &task, nil
}

func (r *pgDeliveryQueueRepository) Retire(ctx context.Context, tx repository.Tx, task *domain.DeliveryTask) error {
	tag, err := tx.Exec(ctx, `
		DELETE FROM issue_delivery_queue
		WHERE newsletter_issue_id = $1 AND subscriber_email = $2
	`, task.NewsletterIssueID, task.SubscriberEmail)
	if err != nil {
		return fmt.Errorf("retire delivery task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrTaskNotClaimed
	}
	return nil
}
