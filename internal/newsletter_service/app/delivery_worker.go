package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/domain"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/provider"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/repository"
)

// ExecutionOutcome reports what one worker cycle did.
type ExecutionOutcome int

const (
	OutcomeTaskCompleted ExecutionOutcome = iota
	OutcomeEmptyQueue
)

// DeliveryWorkerConfig tunes the worker loop. EmptyQueueSleep applies when
// the queue has no pending task; ErrorSleep applies after an infrastructure
// error and is shorter so transient failures are retried faster than
// legitimate idle waits.
type DeliveryWorkerConfig struct {
	EmptyQueueSleep time.Duration
	ErrorSleep      time.Duration
	SendTimeout     time.Duration
}

func (c *DeliveryWorkerConfig) applyDefaults() {
	if c.EmptyQueueSleep <= 0 {
		c.EmptyQueueSleep = 10 * time.Second
	}
	if c.ErrorSleep <= 0 {
		c.ErrorSleep = time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
}

// DeliveryWorker drains the issue delivery queue: claim one task under a
// skip-locked row lease, attempt the send, retire the task. Multiple workers
// can run concurrently against the same queue; coordination happens entirely
// through the store's row locking.
type DeliveryWorker struct {
	txm           repository.TxManager
	queueRepo     repository.DeliveryQueueRepository
	issueRepo     repository.IssueRepository
	emailProvider provider.EmailProvider
	logger        *slog.Logger
	cfg           DeliveryWorkerConfig
}

func NewDeliveryWorker(
	txm repository.TxManager,
	queueRepo repository.DeliveryQueueRepository,
	issueRepo repository.IssueRepository,
	emailProvider provider.EmailProvider,
	logger *slog.Logger,
	cfg DeliveryWorkerConfig,
) *DeliveryWorker {
	cfg.applyDefaults()
	return &DeliveryWorker{
		txm:           txm,
		queueRepo:     queueRepo,
		issueRepo:     issueRepo,
		emailProvider: emailProvider,
		logger:        logger.With("component", "delivery_worker"),
		cfg:           cfg,
	}
}

// Run loops until ctx is cancelled. It never terminates on its own.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "delivery worker started",
		"empty_queue_sleep", w.cfg.EmptyQueueSleep, "error_sleep", w.cfg.ErrorSleep)
	for {
		outcome, err := w.DeliverQueuedTask(ctx)

		var pause time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.ErrorContext(ctx, "delivery cycle failed", "error", err)
			pause = w.cfg.ErrorSleep
		case outcome == OutcomeEmptyQueue:
			pause = w.cfg.EmptyQueueSleep
		default:
			// Task completed; immediately look for the next one, but still
			// yield to cancellation.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		if !sleepCtx(ctx, pause) {
			return ctx.Err()
		}
	}
}

// DeliverQueuedTask processes at most one task. Transport failure does not
// block retirement: a failed send is logged and the task is deleted anyway,
// trading silent per-recipient loss for never retry-looping on a poisoned
// address. An infrastructure error, whether on the queue, the issue read or
// the commit, rolls the claim back so the task becomes visible to the next
// claim (at-least-once delivery).
func (w *DeliveryWorker) DeliverQueuedTask(ctx context.Context) (ExecutionOutcome, error) {
	tx, err := w.txm.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin delivery transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	task, err := w.queueRepo.ClaimOne(ctx, tx)
	if err != nil {
		return 0, err
	}
	if task == nil {
		return OutcomeEmptyQueue, nil
	}

	if err := w.attemptDelivery(ctx, task); err != nil {
		return 0, err
	}

	if err := w.queueRepo.Retire(ctx, tx, task); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit delivery transaction: %w", err)
	}
	committed = true
	return OutcomeTaskCompleted, nil
}

// attemptDelivery returns an error only for infrastructure failures, which
// the caller turns into a rollback so the task stays claimable. Every
// delivery outcome, success or not, ends with the caller retiring the task.
func (w *DeliveryWorker) attemptDelivery(ctx context.Context, task *domain.DeliveryTask) error {
	email, err := domain.ParseSubscriberEmail(task.SubscriberEmail)
	if err != nil {
		w.logger.ErrorContext(ctx, "stored subscriber email is invalid, skipping delivery",
			"error", err, "newsletter_issue_id", task.NewsletterIssueID)
		deliveriesProcessedCounter.WithLabelValues("bad_email").Inc()
		return nil
	}

	issue, err := w.issueRepo.GetByID(ctx, task.NewsletterIssueID)
	if err != nil {
		if errors.Is(err, repository.ErrIssueNotFound) {
			// The issue row is genuinely gone: retire instead of retry-looping
			// on a task that can never be delivered.
			w.logger.ErrorContext(ctx, "newsletter issue missing for delivery task, skipping",
				"newsletter_issue_id", task.NewsletterIssueID)
			deliveriesProcessedCounter.WithLabelValues("missing_issue").Inc()
			return nil
		}
		return fmt.Errorf("fetch issue for delivery task: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()

	timer := prometheus.NewTimer(deliverySendDurationHist)
	err = w.emailProvider.Send(sendCtx, provider.SendEmailRequest{
		ToEmail:     email.String(),
		Subject:     issue.Title,
		HTMLContent: issue.HTMLContent,
		TextContent: issue.TextContent,
	})
	timer.ObserveDuration()

	if err != nil {
		w.logger.ErrorContext(ctx, "failed to deliver issue to a confirmed subscriber, skipping",
			"error", err, "newsletter_issue_id", task.NewsletterIssueID, "subscriber_email", email.String())
		deliveriesProcessedCounter.WithLabelValues("send_error").Inc()
		return nil
	}
	deliveriesProcessedCounter.WithLabelValues("delivered").Inc()
	return nil
}

// sleepCtx waits for d or until ctx is done; it reports false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
