package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MockEmailProvider records sends instead of performing them. Used in tests
// and for local runs without a configured upstream.
type MockEmailProvider struct {
	logger     *slog.Logger
	shouldFail bool
	delay      time.Duration

	mu   sync.Mutex
	sent []SendEmailRequest
}

func NewMockEmailProvider(logger *slog.Logger, shouldFail bool, delay time.Duration) *MockEmailProvider {
	return &MockEmailProvider{
		logger:     logger.With("provider", "mock"),
		shouldFail: shouldFail,
		delay:      delay,
	}
}

func (p *MockEmailProvider) GetName() string { return "mock" }

func (p *MockEmailProvider) Send(ctx context.Context, req SendEmailRequest) error {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.shouldFail {
		return &ServerError{StatusCode: 500}
	}
	p.mu.Lock()
	p.sent = append(p.sent, req)
	p.mu.Unlock()
	p.logger.InfoContext(ctx, "mock email sent", "recipient", req.ToEmail, "subject", req.Subject)
	return nil
}

// SentEmails returns a copy of everything successfully "sent".
func (p *MockEmailProvider) SentEmails() []SendEmailRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SendEmailRequest, len(p.sent))
	copy(out, p.sent)
	return out
}
