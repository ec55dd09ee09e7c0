// Package provider contains outbound email transport adapters. The worker
// and the subscription flow only see the EmailProvider interface; concrete
// adapters translate to a specific upstream API.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// SendEmailRequest carries one outbound email.
type SendEmailRequest struct {
	ToEmail     string
	ToName      string
	Subject     string
	HTMLContent string
	TextContent string
}

// EmailProvider sends a single email. Send must respect ctx cancellation
// and deadlines; callers bound every call with a timeout.
type EmailProvider interface {
	GetName() string
	Send(ctx context.Context, req SendEmailRequest) error
}

// ErrTimeout marks a send attempt that exceeded its deadline. Transient.
var ErrTimeout = errors.New("email provider: request timed out")

// ServerError is a 5xx from the upstream provider. Transient.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("email provider: server error (status %d)", e.StatusCode)
}

// RejectedError is a 4xx from the upstream provider, e.g. a malformed
// recipient address. Not retryable.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("email provider: request rejected (status %d): %s", e.StatusCode, e.Message)
}
