package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidIssue = errors.New("invalid newsletter issue")

// NewsletterIssue is immutable once created; the delivery worker only ever
// reads it.
type NewsletterIssue struct {
	ID          uuid.UUID
	Title       string
	HTMLContent string
	TextContent string
	PublishedAt time.Time
}

// NewNewsletterIssue validates the publish form and assigns a fresh issue id.
func NewNewsletterIssue(title, htmlContent, textContent string) (*NewsletterIssue, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidIssue)
	}
	if strings.TrimSpace(htmlContent) == "" && strings.TrimSpace(textContent) == "" {
		return nil, fmt.Errorf("%w: issue content cannot be empty", ErrInvalidIssue)
	}
	return &NewsletterIssue{
		ID:          uuid.New(),
		Title:       title,
		HTMLContent: htmlContent,
		TextContent: textContent,
	}, nil
}

// DeliveryTask is one pending (issue, recipient) delivery. It is created in
// the same transaction as the issue and deleted once a delivery attempt
// terminates.
type DeliveryTask struct {
	NewsletterIssueID uuid.UUID
	SubscriberEmail   string
}
