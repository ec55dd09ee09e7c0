package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

type SubscriberStatus string

const (
	SubscriberStatusPendingConfirmation SubscriberStatus = "pending_confirmation"
	SubscriberStatusConfirmed           SubscriberStatus = "confirmed"
)

var (
	ErrInvalidSubscriberEmail = errors.New("invalid subscriber email")
	ErrInvalidSubscriberName  = errors.New("invalid subscriber name")
	ErrInvalidToken           = errors.New("invalid subscription token")
)

const (
	maxSubscriberNameLen = 256
	SubscriptionTokenLen = 25
)

// SubscriberEmail is a validated email address. Construct only through
// ParseSubscriberEmail.
type SubscriberEmail string

// ParseSubscriberEmail applies a minimal structural check: one '@' with a
// non-empty local part and a non-empty domain containing no whitespace.
// Anything stricter belongs to the upstream provider, which is the actual
// authority on deliverability.
func ParseSubscriberEmail(raw string) (SubscriberEmail, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: email cannot be empty", ErrInvalidSubscriberEmail)
	}
	at := strings.IndexByte(raw, '@')
	if at <= 0 || at == len(raw)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSubscriberEmail, raw)
	}
	if strings.ContainsAny(raw, " \t\r\n") || strings.Count(raw, "@") != 1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSubscriberEmail, raw)
	}
	return SubscriberEmail(raw), nil
}

func (e SubscriberEmail) String() string { return string(e) }

// ParseSubscriberName rejects empty names, names over 256 runes and names
// containing characters that could break out of HTML or header contexts.
func ParseSubscriberName(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: name cannot be empty", ErrInvalidSubscriberName)
	}
	if len([]rune(raw)) > maxSubscriberNameLen {
		return "", fmt.Errorf("%w: name is too long", ErrInvalidSubscriberName)
	}
	if strings.ContainsAny(raw, `/()"<>\{}`) {
		return "", fmt.Errorf("%w: name contains forbidden characters", ErrInvalidSubscriberName)
	}
	return raw, nil
}

// ParseSubscriptionToken validates a confirmation-link token: exactly 25
// alphanumeric characters, matching what generation produces.
func ParseSubscriptionToken(raw string) (string, error) {
	if len([]rune(raw)) != SubscriptionTokenLen {
		return "", fmt.Errorf("%w: token must be %d characters", ErrInvalidToken, SubscriptionTokenLen)
	}
	for _, r := range raw {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "", fmt.Errorf("%w: token contains forbidden characters", ErrInvalidToken)
		}
	}
	return raw, nil
}

// Subscriber is a newsletter recipient. Only confirmed subscribers receive
// issues.
type Subscriber struct {
	ID           uuid.UUID
	Email        SubscriberEmail
	Name         string
	Status       SubscriberStatus
	SubscribedAt time.Time
}

// NewSubscriber validates name and email and assigns a fresh subscriber id
// in pending_confirmation state.
func NewSubscriber(name, email string) (*Subscriber, error) {
	parsedName, err := ParseSubscriberName(name)
	if err != nil {
		return nil, err
	}
	parsedEmail, err := ParseSubscriberEmail(email)
	if err != nil {
		return nil, err
	}
	return &Subscriber{
		ID:     uuid.New(),
		Email:  parsedEmail,
		Name:   parsedName,
		Status: SubscriberStatusPendingConfirmation,
	}, nil
}
