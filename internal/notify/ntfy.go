// Package notify delivers calendar changes to the outside world: push
// notifications through ntfy and a change feed plus shared idempotency keys
// in Redis.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/example/family-calendar/internal/application"
)

// NtfyConfig configures the ntfy notifier.
type NtfyConfig struct {
	BaseURL    string
	Topic      string
	Timeout    time.Duration
	MaxRetries uint64
	// InitialInterval is the first retry delay; it doubles per attempt.
	InitialInterval time.Duration
}

// NtfyNotifier posts notifications to an ntfy topic.
type NtfyNotifier struct {
	client *resty.Client
	cfg    NtfyConfig
}

// NewNtfyNotifier returns a notifier for cfg.Topic on cfg.BaseURL.
func NewNtfyNotifier(cfg NtfyConfig) (*NtfyNotifier, error) {
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("notify: ntfy topic is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://ntfy.sh"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "text/plain; charset=utf-8").
		SetTimeout(cfg.Timeout)

	return &NtfyNotifier{client: client, cfg: cfg}, nil
}

// Notify implements application.Notifier. Transport errors and 5xx responses
// are retried with exponential backoff; 4xx responses fail immediately.
func (n *NtfyNotifier) Notify(ctx context.Context, msg application.Notification) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = n.cfg.InitialInterval
	policy.MaxElapsedTime = 0
	attempts := backoff.WithContext(backoff.WithMaxRetries(policy, n.cfg.MaxRetries), ctx)

	return backoff.Retry(func() error {
		return n.post(ctx, msg)
	}, attempts)
}

func (n *NtfyNotifier) post(ctx context.Context, msg application.Notification) error {
	req := n.client.R().
		SetContext(ctx).
		SetBody(msg.Message)
	if msg.Title != "" {
		req.SetHeader("Title", msg.Title)
	}
	if msg.Priority > 0 {
		req.SetHeader("Priority", strconv.Itoa(msg.Priority))
	}
	if len(msg.Tags) > 0 {
		req.SetHeader("Tags", strings.Join(msg.Tags, ","))
	}

	resp, err := req.Post("/" + n.cfg.Topic)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("ntfy request failed: %w", err)
	}
	switch code := resp.StatusCode(); {
	case code >= http.StatusInternalServerError || code == http.StatusTooManyRequests:
		return fmt.Errorf("ntfy returned %s", resp.Status())
	case code >= http.StatusBadRequest:
		return backoff.Permanent(fmt.Errorf("ntfy rejected notification: %s", resp.Status()))
	}
	return nil
}
