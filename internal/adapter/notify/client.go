package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

// TooManyRequestsError represents rate limiting signal from the webhook receiver.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// Notifier delivers ledger events to the notification collaborator.
type Notifier interface {
	Send(ctx context.Context, event model.Event) error
}

// NopNotifier drops every event. Used when no webhook is configured.
type NopNotifier struct{}

func (NopNotifier) Send(context.Context, model.Event) error { return nil }

// WebhookClient posts events as JSON.
type WebhookClient struct {
	endpoint   *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookClient creates webhook client with default timeout.
func NewWebhookClient(endpoint string, logger *slog.Logger) (*WebhookClient, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse webhook url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("webhook url must be absolute")
	}
	return &WebhookClient{
		endpoint: parsed,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}, nil
}

// Send posts one event.
func (c *WebhookClient) Send(ctx context.Context, event model.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return TooManyRequestsError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("webhook request failed",
			slog.Int("status", resp.StatusCode),
			slog.String("kind", string(event.Kind)),
			slog.String("body", string(payload)))
		return fmt.Errorf("webhook error: %s", resp.Status)
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 5 * time.Second
}
