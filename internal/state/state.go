package state

import (
	"context"
	"time"
)

// LastTool records the most recently connected tool so the daemon can retry
// it when discovery comes back empty.
type LastTool struct {
	StreamURL   string    `json:"stream_url"`
	InfoURL     string    `json:"info_url,omitempty"`
	Name        string    `json:"name,omitempty"`
	Version     string    `json:"version,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Store defines the interface for persisting the last-tool record.
type Store interface {
	Load(ctx context.Context) (LastTool, bool, error)
	Save(ctx context.Context, tool LastTool) error
}
