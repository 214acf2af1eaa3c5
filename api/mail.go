package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fulfillment/pkg/retry"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type sendCustomEmailRequest struct {
	EmailAddress string `json:"emailAddress"`
	Subject      string `json:"subject"`
	Content      string `json:"content"`
}

// MailClient calls the mail service. Calls go through a circuit breaker so a
// dead mail service fails fast instead of holding consumers.
type MailClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewMailClient(baseURL string) *MailClient {
	if baseURL == "" {
		panic("mail service url must be set")
	}

	return &MailClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   5 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "mail-service",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (c *MailClient) SendEmail(ctx context.Context, to, subject, body string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.sendEmail(ctx, to, subject, body)
	})
	return err
}

func (c *MailClient) sendEmail(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(sendCustomEmailRequest{
		EmailAddress: to,
		Subject:      subject,
		Content:      body,
	})
	if err != nil {
		return retry.Permanent(fmt.Errorf("could not marshal email request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email/send-custom", bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("could not create email request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Correlation-ID", log.CorrelationIDFromContext(ctx))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not call mail service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Permanent(fmt.Errorf("mail service rejected email: status %d", resp.StatusCode))
	default:
		return fmt.Errorf("unexpected mail service status code: %d", resp.StatusCode)
	}
}
