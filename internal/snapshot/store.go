// Package snapshot holds the latest observations of the bridge: connection
// state, the most recent frame text, the last error, and the per-attempt
// diagnostic log. A single mutex-guarded record keeps the fields readable
// from any goroutine while the network side overwrites them.
package snapshot

import (
	"strings"
	"sync"
	"time"
)

const stampLayout = "15:04:05.000"

// Store is created once per process and reset piecemeal across
// connect/disconnect cycles. All accessors are safe for concurrent use and
// never block beyond a brief read lock.
type Store struct {
	mu        sync.RWMutex
	state     ConnectionState
	frame     string
	frameAt   time.Time
	lastError string
	log       []string
	lastStamp time.Time

	now func() time.Time
}

// NewStore returns an empty store in the disconnected state.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// SetState records the authoritative connection state.
func (s *Store) SetState(state ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// State returns the current connection state.
func (s *Store) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetFrame overwrites the latest frame text. Last write wins; intermediate
// frames are dropped when the consumer polls slower than the producer pushes.
func (s *Store) SetFrame(text string) {
	s.mu.Lock()
	s.frame = text
	s.frameAt = s.now()
	s.mu.Unlock()
}

// Frame returns the latest frame text, empty if none has arrived yet.
func (s *Store) Frame() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// FrameAt returns when the latest frame arrived, zero if none has.
func (s *Store) FrameAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameAt
}

// SetError overwrites the last error text.
func (s *Store) SetError(message string) {
	s.mu.Lock()
	s.lastError = message
	s.mu.Unlock()
}

// ClearError removes the last error text. Called only at the start of a new
// discovery attempt; the error otherwise persists so callers can observe the
// last failure cause.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

// LastError returns the last error text, empty if none.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Log appends one timestamped line to the diagnostic log. Stamps are
// non-decreasing within an attempt.
func (s *Store) Log(line string) {
	s.mu.Lock()
	stamp := s.now()
	if stamp.Before(s.lastStamp) {
		stamp = s.lastStamp
	}
	s.lastStamp = stamp
	s.log = append(s.log, stamp.Format(stampLayout)+" "+line)
	s.mu.Unlock()
}

// ResetLog clears the diagnostic log for a fresh discovery attempt.
func (s *Store) ResetLog() {
	s.mu.Lock()
	s.log = nil
	s.mu.Unlock()
}

// DebugLog returns the newline-joined diagnostic log text.
func (s *Store) DebugLog() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strings.Join(s.log, "\n")
}
