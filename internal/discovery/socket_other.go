//go:build !unix

package discovery

import "net"

// enableBroadcast is a no-op where the socket option is unavailable; send
// failures to broadcast targets are tolerated per attempt anyway.
func enableBroadcast(*net.UDPConn) error {
	return nil
}
