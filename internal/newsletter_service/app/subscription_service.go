package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/lettercast/newsletter-platform/internal/newsletter_service/domain"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/provider"
	"github.com/lettercast/newsletter-platform/internal/newsletter_service/repository"
)

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// SubscriptionService handles signup and confirmation. Subscriber and token
// are stored in one transaction; the confirmation email goes out after
// commit so an email never references state that was rolled back.
type SubscriptionService struct {
	txm            repository.TxManager
	subscriberRepo repository.SubscriberRepository
	emailProvider  provider.EmailProvider
	logger         *slog.Logger
	baseURL        string
}

func NewSubscriptionService(
	txm repository.TxManager,
	subscriberRepo repository.SubscriberRepository,
	emailProvider provider.EmailProvider,
	logger *slog.Logger,
	baseURL string,
) *SubscriptionService {
	return &SubscriptionService{
		txm:            txm,
		subscriberRepo: subscriberRepo,
		emailProvider:  emailProvider,
		logger:         logger.With("component", "subscription_service"),
		baseURL:        baseURL,
	}
}

// Subscribe stores a pending subscriber plus confirmation token, then sends
// the confirmation email. A send failure is returned to the caller but
// leaves the stored subscriber in place, pending confirmation.
func (s *SubscriptionService) Subscribe(ctx context.Context, name, email string) (*domain.Subscriber, error) {
	sub, err := domain.NewSubscriber(name, email)
	if err != nil {
		subscriptionsCounter.WithLabelValues("invalid").Inc()
		return nil, err
	}

	token, err := generateSubscriptionToken()
	if err != nil {
		return nil, fmt.Errorf("generate subscription token: %w", err)
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin subscribe transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := s.subscriberRepo.Insert(ctx, tx, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			subscriptionsCounter.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}
	if err := s.subscriberRepo.StoreToken(ctx, tx, sub.ID, token); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit subscribe transaction: %w", err)
	}
	committed = true
	subscriptionsCounter.WithLabelValues("accepted").Inc()

	if err := s.sendConfirmationEmail(ctx, sub, token); err != nil {
		s.logger.ErrorContext(ctx, "failed to send confirmation email",
			"error", err, "subscriber_id", sub.ID)
		return nil, fmt.Errorf("send confirmation email: %w", err)
	}

	s.logger.InfoContext(ctx, "new subscriber stored", "subscriber_id", sub.ID)
	return sub, nil
}

// Confirm flips a pending subscriber to confirmed given a valid token.
func (s *SubscriptionService) Confirm(ctx context.Context, rawToken string) error {
	token, err := domain.ParseSubscriptionToken(rawToken)
	if err != nil {
		return err
	}
	subscriberID, err := s.subscriberRepo.GetIDByToken(ctx, token)
	if err != nil {
		return err
	}
	if err := s.subscriberRepo.ConfirmByID(ctx, subscriberID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "subscriber confirmed", "subscriber_id", subscriberID)
	return nil
}

func (s *SubscriptionService) sendConfirmationEmail(ctx context.Context, sub *domain.Subscriber, token string) error {
	link := fmt.Sprintf("%s/subscriptions/confirm?subscription_token=%s", s.baseURL, token)
	return s.emailProvider.Send(ctx, provider.SendEmailRequest{
		ToEmail: sub.Email.String(),
		ToName:  sub.Name,
		Subject: "Welcome!",
		HTMLContent: fmt.Sprintf(
			"Welcome to our newsletter!<br/>Click <a href=\"%s\">here</a> to confirm your subscription.", link),
		TextContent: fmt.Sprintf(
			"Welcome to our newsletter!\nVisit %s to confirm your subscription.", link),
	})
}

func generateSubscriptionToken() (string, error) {
	out := make([]byte, domain.SubscriptionTokenLen)
	alphabetLen := big.NewInt(int64(len(tokenAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		out[i] = tokenAlphabet[n.Int64()]
	}
	return string(out), nil
}
