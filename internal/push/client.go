package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
)

// Config carries the VAPID identity and delivery limits for the push client.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	Timeout         time.Duration
	TTL             int
}

// Subscription identifies one browser endpoint and its encryption keys.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Payload is the notification content shown by the browser. The service
// worker on the subscribing page decodes exactly this JSON shape.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Result describes the outcome of one delivery attempt. Delivery failures
// are data, not errors: the dispatcher records them and keeps going.
type Result struct {
	Success    bool
	StatusCode int
	Error      string
}

// Client sends Web Push messages signed with the platform's VAPID key pair.
type Client struct {
	options webpush.Options
	timeout time.Duration
}

// NewClient validates the VAPID configuration and returns a push client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.VAPIDPublicKey) == "" || strings.TrimSpace(cfg.VAPIDPrivateKey) == "" {
		return nil, errors.New("push: VAPID key pair is required")
	}
	subject := strings.TrimSpace(cfg.Subject)
	if subject == "" {
		return nil, errors.New("push: VAPID subject is required")
	}
	if !strings.HasPrefix(subject, "mailto:") && !strings.HasPrefix(subject, "https:") {
		return nil, fmt.Errorf("push: VAPID subject %q must be a mailto: or https: URI", subject)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 60
	}

	return &Client{
		options: webpush.Options{
			Subscriber:      subject,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             ttl,
		},
		timeout: timeout,
	}, nil
}

// Deliver pushes one payload to one subscription. The error return covers
// only local failures (payload marshalling); endpoint rejections come back
// inside the Result so a batch send can classify them per subscriber.
func (c *Client) Deliver(ctx context.Context, sub Subscription, payload Payload) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("push: marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &c.options)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return Result{
			Success:    false,
			StatusCode: resp.StatusCode,
			Error:      classifyStatus(resp.StatusCode),
		}, nil
	}

	return Result{Success: true, StatusCode: resp.StatusCode}, nil
}

// classifyStatus maps a push service rejection to a stored error message.
// 404 and 410 mean the browser dropped the subscription.
func classifyStatus(status int) string {
	switch status {
	case http.StatusNotFound, http.StatusGone:
		return fmt.Sprintf("subscription expired (HTTP %d)", status)
	default:
		return fmt.Sprintf("push service rejected delivery (HTTP %d)", status)
	}
}
