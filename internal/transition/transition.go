// Package transition records connection state changes for observers that
// care about lifecycle, not frames: notifiers, logs, status endpoints.
package transition

import (
	"fmt"
	"sync"
	"time"

	"chartlink/internal/snapshot"
)

const defaultKeep = 32

// Event is one observed state change.
type Event struct {
	From   snapshot.ConnectionState
	To     snapshot.ConnectionState
	Reason string
	At     time.Time
}

// String renders the event for logs and notifications.
func (e Event) String() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s -> %s", e.From, e.To)
	}
	return fmt.Sprintf("%s -> %s (%s)", e.From, e.To, e.Reason)
}

// Notable reports whether an event is worth alerting on: reaching connected,
// losing an established connection, or entering the error state.
func (e Event) Notable() bool {
	switch {
	case e.To == snapshot.StateConnected:
		return true
	case e.To == snapshot.StateError:
		return true
	case e.From == snapshot.StateConnected && e.To == snapshot.StateDisconnected:
		return true
	case e.From == snapshot.StateClosing && e.To == snapshot.StateDisconnected:
		return true
	default:
		return false
	}
}

// Log keeps a bounded ring of recent events.
type Log struct {
	mu     sync.Mutex
	events []Event
	keep   int
}

// NewLog returns a log retaining up to keep events; keep <= 0 uses a default.
func NewLog(keep int) *Log {
	if keep <= 0 {
		keep = defaultKeep
	}
	return &Log{keep: keep}
}

// Record appends an event, discarding the oldest past capacity.
func (l *Log) Record(event Event) {
	l.mu.Lock()
	l.events = append(l.events, event)
	if len(l.events) > l.keep {
		l.events = l.events[len(l.events)-l.keep:]
	}
	l.mu.Unlock()
}

// Recent returns a copy of the retained events, oldest first.
func (l *Log) Recent() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
