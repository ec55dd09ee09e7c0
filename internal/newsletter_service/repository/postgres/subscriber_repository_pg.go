package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/domain"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/repository"
)

const pgUniqueViolation = "23505"

type pgSubscriberRepository struct {
	db *pgxpool.Pool
}

func NewPgSubscriberRepository(db *pgxpool.Pool) repository.SubscriberRepository {
	return &pgSubscriberRepository{db: db}
}

func (r *pgSubscriberRepository) Insert(ctx context.Context, tx repository.Tx, sub *domain.Subscriber) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO subscriptions (id, email, name, subscribed_at, status)
		VALUES ($1, $2, $3, now(), $4)
	`, sub.ID, sub.Email.String(), sub.Name, string(sub.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return repository.ErrDuplicateEmail
		}
		return fmt.Errorf("insert subscriber: %w", err)
	}
	return nil
}

func (r *pgSubscriberRepository) StoreToken(ctx context.Context, tx repository.Tx, subscriberID uuid.UUID, token string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO subscription_tokens (subscription_token, subscriber_id)
		VALUES ($1, $2)
	`, token, subscriberID)
	if err != nil {
		return fmt.Errorf("store subscription token: %w", err)
	}
	return nil
}

func (r *pgSubscriberRepository) GetIDByToken(ctx context.Context, token string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
		SELECT subscriber_id FROM subscription_tokens WHERE subscription_token = $1
	`, token).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, repository.ErrTokenNotFound
		}
		return uuid.Nil, fmt.Errorf("fetch subscriber by token: %w", err)
	}
	return id, nil
}

func (r *pgSubscriberRepository) ConfirmByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE subscriptions SET status = $2 WHERE id = $1
	`, id, string(domain.SubscriberStatusConfirmed))
	if err != nil {
		return fmt.Errorf("confirm subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrSubscriberNotFound
	}
	return nil
}

func (r *pgSubscriberRepository) ListConfirmedEmails(ctx context.Context, tx repository.Tx) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT email FROM subscriptions WHERE status = $1
	`, string(domain.SubscriberStatusConfirmed))
	if err != nil {
		return nil, fmt.Errorf("list confirmed subscribers: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return emails, nil
}
