package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/domain"
)

// These tests exercise the real locking and conflict behavior the in-memory
// fakes can only approximate. They run against a database with the
// migrations applied and skip otherwise.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set; skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (user_id, username, password_hash)
		VALUES ($1, $2, 'x')
	`, userID, fmt.Sprintf("it-user-%s", userID))
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM idempotency WHERE user_id = $1`, userID)
		pool.Exec(context.Background(), `DELETE FROM users WHERE user_id = $1`, userID)
	})
	return userID
}

func seedQueuedIssue(t *testing.T, pool *pgxpool.Pool, emails ...string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	issueID := uuid.New()
	_, err := pool.Exec(ctx, `
		INSERT INTO newsletter_issues (newsletter_issue_id, title, html_content, text_content, published_at)
		VALUES ($1, 'Issue', '<p>Hi</p>', 'Hi', now())
	`, issueID)
	require.NoError(t, err)
	for _, email := range emails {
		_, err := pool.Exec(ctx, `
			INSERT INTO issue_delivery_queue (newsletter_issue_id, subscriber_email)
			VALUES ($1, $2)
		`, issueID, email)
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, `DELETE FROM issue_delivery_queue WHERE newsletter_issue_id = $1`, issueID)
		pool.Exec(ctx, `DELETE FROM newsletter_issues WHERE newsletter_issue_id = $1`, issueID)
	})
	return issueID
}

func TestReserveIsFirstWriterWins(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	userID := seedUser(t, pool)
	repo := NewPgIdempotencyRepository(pool)
	txm := NewPgxTxManager(pool)

	key, err := domain.ParseIdempotencyKey("it-" + uuid.NewString())
	require.NoError(t, err)

	tx1, err := txm.BeginRepeatableRead(ctx)
	require.NoError(t, err)
	inserted, err := repo.Reserve(ctx, tx1, userID, key)
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, tx1.Commit(ctx))

	tx2, err := txm.BeginRepeatableRead(ctx)
	require.NoError(t, err)
	defer tx2.Rollback(ctx)
	inserted, err = repo.Reserve(ctx, tx2, userID, key)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestRolledBackReservationLeavesNoTrace(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	userID := seedUser(t, pool)
	repo := NewPgIdempotencyRepository(pool)
	txm := NewPgxTxManager(pool)

	key, err := domain.ParseIdempotencyKey("it-" + uuid.NewString())
	require.NoError(t, err)

	tx1, err := txm.BeginRepeatableRead(ctx)
	require.NoError(t, err)
	inserted, err := repo.Reserve(ctx, tx1, userID, key)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, tx1.Rollback(ctx))

	// A retry must behave like a first attempt.
	tx2, err := txm.BeginRepeatableRead(ctx)
	require.NoError(t, err)
	defer tx2.Rollback(ctx)
	inserted, err = repo.Reserve(ctx, tx2, userID, key)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestSaveAndReplayResponseRoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	userID := seedUser(t, pool)
	repo := NewPgIdempotencyRepository(pool)
	txm := NewPgxTxManager(pool)

	key, err := domain.ParseIdempotencyKey("it-" + uuid.NewString())
	require.NoError(t, err)

	stored := &domain.StoredResponse{
		StatusCode: 201,
		Headers: []domain.HeaderPair{
			{Name: "Content-Type", Value: []byte("application/json")},
			{Name: "X-Custom", Value: []byte{0x00, 0xff, 0x42}},
		},
		Body: []byte(`{"ok":true}`),
	}

	tx, err := txm.BeginRepeatableRead(ctx)
	require.NoError(t, err)
	inserted, err := repo.Reserve(ctx, tx, userID, key)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, repo.SaveResponse(ctx, tx, userID, key, stored))
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetSavedResponse(ctx, userID, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, stored.StatusCode, got.StatusCode)
	assert.Equal(t, stored.Headers, got.Headers)
	assert.Equal(t, stored.Body, got.Body)
}

func TestGetSavedResponseNilBeforeSave(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	userID := seedUser(t, pool)
	repo := NewPgIdempotencyRepository(pool)
	txm := NewPgxTxManager(pool)

	key, err := domain.ParseIdempotencyKey("it-" + uuid.NewString())
	require.NoError(t, err)

	tx, err := txm.BeginRepeatableRead(ctx)
	require.NoError(t, err)
	inserted, err := repo.Reserve(ctx, tx, userID, key)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetSavedResponse(ctx, userID, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClaimOneSkipsLockedRows(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	issueID := seedQueuedIssue(t, pool, "it-a@example.com")
	repo := NewPgDeliveryQueueRepository(pool)
	txm := NewPgxTxManager(pool)

	tx1, err := txm.Begin(ctx)
	require.NoError(t, err)
	defer tx1.Rollback(ctx)
	task1, err := repo.ClaimOne(ctx, tx1)
	require.NoError(t, err)
	require.NotNil(t, task1)
	assert.Equal(t, issueID, task1.NewsletterIssueID)

	// While tx1 holds the row lock a second worker sees an empty queue
	// instead of blocking.
	tx2, err := txm.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback(ctx)
	task2, err := repo.ClaimOne(ctx, tx2)
	require.NoError(t, err)
	assert.Nil(t, task2)
}

func TestRollbackReleasesClaimedTask(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	seedQueuedIssue(t, pool, "it-b@example.com")
	repo := NewPgDeliveryQueueRepository(pool)
	txm := NewPgxTxManager(pool)

	tx1, err := txm.Begin(ctx)
	require.NoError(t, err)
	task, err := repo.ClaimOne(ctx, tx1)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.NoError(t, tx1.Rollback(ctx))

	tx2, err := txm.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback(ctx)
	reclaimed, err := repo.ClaimOne(ctx, tx2)
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, task.SubscriberEmail, reclaimed.SubscriberEmail)
}

func TestRetireDeletesClaimedTask(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	issueID := seedQueuedIssue(t, pool, "it-c@example.com")
	repo := NewPgDeliveryQueueRepository(pool)
	txm := NewPgxTxManager(pool)

	tx, err := txm.Begin(ctx)
	require.NoError(t, err)
	task, err := repo.ClaimOne(ctx, tx)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.NoError(t, repo.Retire(ctx, tx, task))
	require.NoError(t, tx.Commit(ctx))

	var remaining int
	err = pool.QueryRow(ctx, `
		SELECT count(*) FROM issue_delivery_queue WHERE newsletter_issue_id = $1
	`, issueID).Scan(&remaining)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}
