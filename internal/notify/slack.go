package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"chartlink/internal/snapshot"
	"chartlink/internal/transition"
)

// SlackNotifier posts connection transitions as Slack block-kit messages.
type SlackNotifier struct {
	logger zerolog.Logger
	poster *httpPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier, *timingConfig)

// WithSlackTiming overrides timing parameters (primarily for testing).
func WithSlackTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) SlackOption {
	return func(_ *SlackNotifier, timing *timingConfig) {
		timing.rateInterval = rateInterval
		timing.rateBurst = rateBurst
		timing.backoffInitial = backoffInitial
		timing.backoffMax = backoffMax
		timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewSlackNotifier creates a Slack notifier, or a noop notifier when the
// webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; notifications disabled")
	}

	notifier := &SlackNotifier{logger: logger}
	timing := defaultTiming
	for _, opt := range opts {
		opt(notifier, &timing)
	}
	notifier.poster = newHTTPPoster(logger, "slack", webhookURL, "application/json", timing)

	return notifier
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, event transition.Event) error {
	if !event.Notable() {
		return nil
	}
	if err := n.poster.waitForRateLimit(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(buildSlackMessage(event))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	if err := n.poster.postWithRetry(ctx, payload); err != nil {
		return err
	}

	n.logger.Debug().
		Str("to", event.To.String()).
		Msg("slack notification sent")

	return nil
}

func buildSlackMessage(event transition.Event) slack.WebhookMessage {
	summary := fmt.Sprintf("chartlink: %s", stateLabel(event.To))
	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", summary, false, false))

	body := fmt.Sprintf("`%s` → `%s`", event.From, event.To)
	text := slack.NewTextBlockObject("mrkdwn", body, false, false)

	fields := make([]*slack.TextBlockObject, 0, 1)
	if event.Reason != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Reason:*\n"+event.Reason, false, false))
	}
	section := slack.NewSectionBlock(text, fields, nil)

	contextBlock := slack.NewContextBlock("",
		slack.NewTextBlockObject("mrkdwn", event.At.UTC().Format(time.RFC3339), false, false))

	blockSet := slack.Blocks{BlockSet: []slack.Block{header, section, contextBlock}}
	return slack.WebhookMessage{
		Text:   summary,
		Blocks: &blockSet,
	}
}

func stateLabel(state snapshot.ConnectionState) string {
	switch state {
	case snapshot.StateConnected:
		return "tool connected"
	case snapshot.StateError:
		return "connection error"
	case snapshot.StateDisconnected:
		return "tool disconnected"
	default:
		return state.String()
	}
}
