package notify

import (
	"context"

	"chartlink/internal/transition"
)

// MultiNotifier fans out notifications to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that dispatches to all provided notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	filtered := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier == nil {
			continue
		}
		filtered = append(filtered, notifier)
	}
	return &MultiNotifier{notifiers: filtered}
}

// Notify implements Notifier. Every notifier is attempted; the first error is
// reported.
func (m *MultiNotifier) Notify(ctx context.Context, event transition.Event) error {
	var firstErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Notify(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
