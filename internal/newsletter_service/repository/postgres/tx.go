package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/repository"
)

// PgxTxManager implements repository.TxManager on a pgxpool.Pool.
type PgxTxManager struct {
	pool *pgxpool.Pool
}

func NewPgxTxManager(pool *pgxpool.Pool) *PgxTxManager {
	return &PgxTxManager{pool: pool}
}

func (m *PgxTxManager) Begin(ctx context.Context) (repository.Tx, error) {
	return m.pool.Begin(ctx)
}

func (m *PgxTxManager) BeginRepeatableRead(ctx context.Context) (repository.Tx, error) {
	return m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
}
