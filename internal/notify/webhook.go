package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chartlink/internal/transition"
)

// WebhookPayload is the JSON document posted to a generic webhook.
type WebhookPayload struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
	Transport string    `json:"transport"`
}

// WebhookNotifier posts connection transitions to a generic webhook.
type WebhookNotifier struct {
	logger zerolog.Logger
	poster *httpPoster
}

// WebhookOption customizes WebhookNotifier behavior.
type WebhookOption func(*WebhookNotifier, *timingConfig)

// WithWebhookTiming overrides timing parameters (primarily for testing).
func WithWebhookTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) WebhookOption {
	return func(_ *WebhookNotifier, timing *timingConfig) {
		timing.rateInterval = rateInterval
		timing.rateBurst = rateBurst
		timing.backoffInitial = backoffInitial
		timing.backoffMax = backoffMax
		timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewWebhookNotifier creates a webhook notifier, or a noop notifier when the
// webhook is empty.
func NewWebhookNotifier(logger zerolog.Logger, webhookURL string, opts ...WebhookOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "webhook not configured; notifications disabled")
	}

	notifier := &WebhookNotifier{logger: logger}
	timing := defaultTiming
	for _, opt := range opts {
		opt(notifier, &timing)
	}
	notifier.poster = newHTTPPoster(logger, "webhook", webhookURL, "application/json", timing)

	return notifier
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, event transition.Event) error {
	if !event.Notable() {
		return nil
	}
	if err := n.poster.waitForRateLimit(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(WebhookPayload{
		From:      event.From.String(),
		To:        event.To.String(),
		Reason:    event.Reason,
		At:        event.At,
		Transport: "websocket",
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	if err := n.poster.postWithRetry(ctx, payload); err != nil {
		return err
	}

	n.logger.Debug().
		Str("to", event.To.String()).
		Msg("webhook notification sent")

	return nil
}
