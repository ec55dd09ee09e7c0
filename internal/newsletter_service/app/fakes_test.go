package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/domain"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type resKey struct {
	user uuid.UUID
	key  domain.IdempotencyKey
}

type taskKey struct {
	issue uuid.UUID
	email string
}

// fakeStore is a transaction-aware in-memory stand-in for the shared
// relational store: writes buffer in a fakeTx and only land here on commit,
// and claims release on rollback, so the atomicity and lease semantics the
// services rely on are honored by the fakes.
type fakeStore struct {
	mu              sync.Mutex
	reservations    map[resKey]bool
	responses       map[resKey]*domain.StoredResponse
	issues          map[uuid.UUID]*domain.NewsletterIssue
	queue           map[taskKey]bool
	claimed         map[taskKey]bool
	confirmedEmails []string
	subscribers     map[uuid.UUID]*domain.Subscriber
	tokens          map[string]uuid.UUID
	users           map[string]*domain.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reservations: make(map[resKey]bool),
		responses:    make(map[resKey]*domain.StoredResponse),
		issues:       make(map[uuid.UUID]*domain.NewsletterIssue),
		queue:        make(map[taskKey]bool),
		claimed:      make(map[taskKey]bool),
		subscribers:  make(map[uuid.UUID]*domain.Subscriber),
		tokens:       make(map[string]uuid.UUID),
		users:        make(map[string]*domain.User),
	}
}

func (s *fakeStore) queueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *fakeStore) issueCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.issues)
}

func (s *fakeStore) addTask(issueID uuid.UUID, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[taskKey{issue: issueID, email: email}] = true
}

func (s *fakeStore) addIssue(issue *domain.NewsletterIssue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues[issue.ID] = issue
}

type fakeTx struct {
	store   *fakeStore
	pending []func(*fakeStore)
	claims  []taskKey
	done    bool
}

func (tx *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("fake tx does not support raw SQL")
}

func (tx *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("fake tx does not support raw SQL")
}

func (tx *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("fake tx does not support raw SQL")
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.done {
		return pgx.ErrTxClosed
	}
	for _, apply := range tx.pending {
		apply(tx.store)
	}
	for _, claim := range tx.claims {
		delete(tx.store.claimed, claim)
	}
	tx.done = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.pending = nil
	for _, claim := range tx.claims {
		delete(tx.store.claimed, claim)
	}
	tx.done = true
	return nil
}

type fakeTxManager struct {
	store      *fakeStore
	failBegin  atomic.Bool
	beginCount atomic.Int32
}

func (m *fakeTxManager) Begin(context.Context) (repository.Tx, error) {
	if m.failBegin.Load() {
		return nil, errors.New("store unavailable")
	}
	m.beginCount.Add(1)
	return &fakeTx{store: m.store}, nil
}

func (m *fakeTxManager) BeginRepeatableRead(ctx context.Context) (repository.Tx, error) {
	return m.Begin(ctx)
}

type fakeIdempotencyRepo struct {
	store    *fakeStore
	failSave bool
}

func (r *fakeIdempotencyRepo) Reserve(_ context.Context, tx repository.Tx, userID uuid.UUID, key domain.IdempotencyKey) (bool, error) {
	ftx := tx.(*fakeTx)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rk := resKey{user: userID, key: key}
	if r.store.reservations[rk] {
		return false, nil
	}
	ftx.pending = append(ftx.pending, func(s *fakeStore) {
		s.reservations[rk] = true
	})
	return true, nil
}

func (r *fakeIdempotencyRepo) SaveResponse(_ context.Context, tx repository.Tx, userID uuid.UUID, key domain.IdempotencyKey, resp *domain.StoredResponse) error {
	if r.failSave {
		return errors.New("save response failed")
	}
	ftx := tx.(*fakeTx)
	rk := resKey{user: userID, key: key}
	ftx.pending = append(ftx.pending, func(s *fakeStore) {
		s.responses[rk] = resp
	})
	return nil
}

func (r *fakeIdempotencyRepo) GetSavedResponse(_ context.Context, userID uuid.UUID, key domain.IdempotencyKey) (*domain.StoredResponse, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rk := resKey{user: userID, key: key}
	if !r.store.reservations[rk] {
		return nil, nil
	}
	return r.store.responses[rk], nil
}

type fakeIssueRepo struct {
	store      *fakeStore
	failInsert bool
	failGet    error
}

func (r *fakeIssueRepo) Insert(_ context.Context, tx repository.Tx, issue *domain.NewsletterIssue) error {
	if r.failInsert {
		return errors.New("insert issue failed")
	}
	ftx := tx.(*fakeTx)
	ftx.pending = append(ftx.pending, func(s *fakeStore) {
		s.issues[issue.ID] = issue
	})
	return nil
}

func (r *fakeIssueRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.NewsletterIssue, error) {
	if r.failGet != nil {
		return nil, r.failGet
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	issue, ok := r.store.issues[id]
	if !ok {
		return nil, repository.ErrIssueNotFound
	}
	return issue, nil
}

type fakeQueueRepo struct {
	store       *fakeStore
	failEnqueue bool
}

func (r *fakeQueueRepo) Enqueue(_ context.Context, tx repository.Tx, issueID uuid.UUID, subscriberEmail string) error {
	if r.failEnqueue {
		return errors.New("enqueue failed")
	}
	ftx := tx.(*fakeTx)
	tk := taskKey{issue: issueID, email: subscriberEmail}
	ftx.pending = append(ftx.pending, func(s *fakeStore) {
		s.queue[tk] = true
	})
	return nil
}

func (r *fakeQueueRepo) ClaimOne(_ context.Context, tx repository.Tx) (*domain.DeliveryTask, error) {
	ftx := tx.(*fakeTx)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for tk := range r.store.queue {
		if r.store.claimed[tk] {
			continue
		}
		r.store.claimed[tk] = true
		ftx.claims = append(ftx.claims, tk)
		return &domain.DeliveryTask{NewsletterIssueID: tk.issue, SubscriberEmail: tk.email}, nil
	}
	return nil, nil
}

func (r *fakeQueueRepo) Retire(_ context.Context, tx repository.Tx, task *domain.DeliveryTask) error {
	ftx := tx.(*fakeTx)
	tk := taskKey{issue: task.NewsletterIssueID, email: task.SubscriberEmail}
	ftx.pending = append(ftx.pending, func(s *fakeStore) {
		delete(s.queue, tk)
	})
	return nil
}

type fakeSubscriberRepo struct {
	store *fakeStore
}

func (r *fakeSubscriberRepo) Insert(_ context.Context, tx repository.Tx, sub *domain.Subscriber) error {
	ftx := tx.(*fakeTx)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.subscribers {
		if existing.Email == sub.Email {
			return repository.ErrDuplicateEmail
		}
	}
	ftx.pending = append(ftx.pending, func(s *fakeStore) {
		s.subscribers[sub.ID] = sub
	})
	return nil
}

func (r *fakeSubscriberRepo) StoreToken(_ context.Context, tx repository.Tx, subscriberID uuid.UUID, token string) error {
	ftx := tx.(*fakeTx)
	ftx.pending = append(ftx.pending, func(s *fakeStore) {
		s.tokens[token] = subscriberID
	})
	return nil
}

func (r *fakeSubscriberRepo) GetIDByToken(_ context.Context, token string) (uuid.UUID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id, ok := r.store.tokens[token]
	if !ok {
		return uuid.Nil, repository.ErrTokenNotFound
	}
	return id, nil
}

func (r *fakeSubscriberRepo) ConfirmByID(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sub, ok := r.store.subscribers[id]
	if !ok {
		return repository.ErrSubscriberNotFound
	}
	sub.Status = domain.SubscriberStatusConfirmed
	return nil
}

func (r *fakeSubscriberRepo) ListConfirmedEmails(_ context.Context, _ repository.Tx) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	emails := make([]string, 0, len(r.store.confirmedEmails))
	emails = append(emails, r.store.confirmedEmails...)
	for _, sub := range r.store.subscribers {
		if sub.Status == domain.SubscriberStatusConfirmed {
			emails = append(emails, sub.Email.String())
		}
	}
	return emails, nil
}

type fakeUserRepo struct {
	store *fakeStore
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, ok := r.store.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, user := range r.store.users {
		if user.ID == userID {
			user.PasswordHash = passwordHash
			return nil
		}
	}
	return repository.ErrUserNotFound
}
