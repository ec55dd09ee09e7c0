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

type pgIssueRepository struct {
	db *pgxpool.Pool
}

func NewPgIssueRepository(db *pgxpool.Pool) repository.IssueRepository {
	return &pgIssueRepository{db: db}
}

func (r *pgIssueRepository) Insert(ctx context.Context, tx repository.Tx, issue *domain.NewsletterIssue) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO newsletter_issues (newsletter_issue_id, title, html_content, text_content, published_at)
		VALUES ($1, $2, $3, $4, now())
	`, issue.ID, issue.Title, issue.HTMLContent, issue.TextContent)
	if err != nil {
		return fmt.Errorf("insert newsletter issue: %w", err)
	}
	return nil
}

func (r *pgIssueRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.NewsletterIssue, error) {
	issue := &domain.NewsletterIssue{ID: id}
	err := r.db.QueryRow(ctx, `
		SELECT title, html_content, text_content, published_at
		FROM newsletter_issues
		WHERE newsletter_issue_id = $1
	`, id).Scan(&issue.Title, &issue.HTMLContent, &issue.TextContent, &issue.PublishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrIssueNotFound
		}
		return nil, fmt.Errorf("fetch newsletter issue: %w", err)
	}
	return issue, nil
}
