//go:build unix

package discovery

import (
	"net"

	"golang.org/x/sys/unix"
)

// enableBroadcast sets SO_BROADCAST so probes may target directed and global
// broadcast addresses.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
