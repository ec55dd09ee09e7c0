package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/domain"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/repository"
)

type pgIdempotencyRepository struct {
	db *pgxpool.Pool
}

// NewPgIdempotencyRepository creates the PostgreSQL command store.
func NewPgIdempotencyRepository(db *pgxpool.Pool) repository.IdempotencyRepository {
	return &pgIdempotencyRepository{db: db}
}

func (r *pgIdempotencyRepository) Reserve(ctx context.Context, tx repository.Tx, userID uuid.UUID, key domain.IdempotencyKey) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO idempotency (user_id, idempotency_key, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT DO NOTHING
	`, userID, key.String())
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgIdempotencyRepository) SaveResponse(ctx context.Context, tx repository.Tx, userID uuid.UUID, key domain.IdempotencyKey, resp *domain.StoredResponse) error {
	// Headers go into a JSONB array: order-preserving and byte-capable
	// ([]byte values encode as base64), so replays stay verbatim.
	headers, err := json.Marshal(resp.Headers)
	if err != nil {
		return fmt.Errorf("marshal response headers: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE idempotency
		SET response_status_code = $3,
		    response_headers = $4,
		    response_body = $5
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key.String(), int16(resp.StatusCode), headers, resp.Body)
	if err != nil {
		return fmt.Errorf("save response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("save response: no reservation row to populate")
	}
	return nil
}

func (r *pgIdempotencyRepository) GetSavedResponse(ctx context.Context, userID uuid.UUID, key domain.IdempotencyKey) (*domain.StoredResponse, error) {
	var (
		statusCode *int16
		headersRaw []byte
		body       []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT response_status_code, response_headers, response_body
		FROM idempotency
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key.String()).Scan(&statusCode, &headersRaw, &body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch saved response: %w", err)
	}
	if statusCode == nil {
		// Reservation exists but the owning transaction has not committed
		// its response yet (or never will).
		return nil, nil
	}

	var headers []domain.HeaderPair
	if len(headersRaw) > 0 {
		if err := json.Unmarshal(headersRaw, &headers); err != nil {
			return nil, fmt.Errorf("unmarshal response headers: %w", err)
		}
	}
	return &domain.StoredResponse{
		StatusCode: int(*statusCode),
		Headers:    headers,
		Body:       body,
	}, nil
}
