package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// RestEmailProvider sends email through a JSON-over-HTTP delivery API
// (POST {base}/email with an api-key header).
type RestEmailProvider struct {
	logger      *slog.Logger
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	senderEmail string
	senderName  string
}

// NewRestEmailProvider creates the REST adapter. A nil httpClient gets a
// default client bounded by timeout; pass a custom client in tests.
func NewRestEmailProvider(logger *slog.Logger, baseURL, apiKey, senderEmail, senderName string, timeout time.Duration, httpClient *http.Client) *RestEmailProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &RestEmailProvider{
		logger:      logger.With("provider", "rest_email"),
		httpClient:  httpClient,
		baseURL:     baseURL,
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
	}
}

func (p *RestEmailProvider) GetName() string { return "rest_email" }

type sendEmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type sendEmailMessage struct {
	Sender      sendEmailAddress   `json:"sender"`
	To          []sendEmailAddress `json:"to"`
	Subject     string             `json:"subject"`
	HTMLContent string             `json:"htmlContent"`
	TextContent string             `json:"textContent"`
}

func (p *RestEmailProvider) Send(ctx context.Context, req SendEmailRequest) error {
	body := sendEmailMessage{
		Sender:      sendEmailAddress{Email: p.senderEmail, Name: p.senderName},
		To:          []sendEmailAddress{{Email: req.ToEmail, Name: req.ToName}},
		Subject:     req.Subject,
		HTMLContent: req.HTMLContent,
		TextContent: req.TextContent,
	}
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("email provider: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/email", bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("email provider: build request: %w", err)
	}
	httpReq.Header.Set("api-key", p.apiKey)
	httpReq.Header.Set("accept", "application/json")
	httpReq.Header.Set("content-type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("email provider: send request: %w", err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode >= 500:
		io.Copy(io.Discard, httpResp.Body)
		return &ServerError{StatusCode: httpResp.StatusCode}
	case httpResp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return &RejectedError{StatusCode: httpResp.StatusCode, Message: string(msg)}
	}

	io.Copy(io.Discard, httpResp.Body)
	p.logger.DebugContext(ctx, "email accepted by provider", "recipient", req.ToEmail)
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
