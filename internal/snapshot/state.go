package snapshot

// ConnectionState is the single authoritative connection state of the bridge.
// Only the relay mutates it.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateDiscovering
	StateConnecting
	StateConnected
	StateClosing
	StateError
)

// String returns the wire-facing name of the state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateDiscovering:
		return "discovering"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
