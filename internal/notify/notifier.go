package notify

import (
	"context"

	"chartlink/internal/transition"
)

// Notifier delivers connection transition alerts to external systems.
type Notifier interface {
	Notify(ctx context.Context, event transition.Event) error
}
