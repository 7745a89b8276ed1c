// Package discovery locates a charting tool on the local network via a UDP
// broadcast handshake: one probe datagram out, one response datagram back.
package discovery

import (
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"chartlink/internal/protocol"
)

const maxResponseBytes = 64 * 1024

// DiscoveredServer describes the tool a discovery probe found. It is consumed
// once to open the stream and not retained afterward.
type DiscoveredServer struct {
	StreamURL string
	InfoURL   string
	Name      string
	Version   string
}

// Client performs discovery attempts. Zero-value options broadcast to the
// global address plus every eligible interface broadcast address.
type Client struct {
	logger zerolog.Logger
	diag   func(line string)
	extra  []string
}

// Option customizes a Client.
type Option func(*Client)

// WithDiagnostics installs a sink receiving one line per lifecycle event of
// an attempt.
func WithDiagnostics(sink func(line string)) Option {
	return func(c *Client) {
		c.diag = sink
	}
}

// WithExtraTargets adds unicast addresses probed alongside the broadcast set.
// Useful on networks that filter broadcast traffic, and for tests.
func WithExtraTargets(addrs ...string) Option {
	return func(c *Client) {
		c.extra = append(c.extra, addrs...)
	}
}

// NewClient constructs a discovery client.
func NewClient(logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover broadcasts the discovery token on the given port and waits up to
// timeout for one response. It returns (nil, nil) when no usable response
// arrives: timeout, malformed JSON, or a missing/blank ws_url all count as
// not found. A non-nil error means a local socket fault.
//
// Exactly one datagram is consulted. If several tools answer, the first
// response wins and the rest are never read; there is no ranking.
// The wait is not cancelable: it always runs to its deadline.
func (c *Client) Discover(port int, timeout time.Duration) (*DiscoveredServer, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("open discovery socket: %w", err)
	}
	defer conn.Close()

	if err := enableBroadcast(conn); err != nil {
		c.logger.Warn().Err(err).Msg("broadcast socket option failed")
		c.log(fmt.Sprintf("broadcast socket option failed: %v", err))
	}

	targets := c.broadcastTargets()
	c.log(fmt.Sprintf("discovery targets enumerated: %d", len(targets)))

	sent := 0
	for _, target := range targets {
		addr := &net.UDPAddr{IP: target, Port: port}
		if _, err := conn.WriteToUDP([]byte(protocol.DiscoveryToken), addr); err != nil {
			c.logger.Warn().Str("target", addr.String()).Err(err).Msg("discovery send failed")
			c.log(fmt.Sprintf("send failed for %s: %v", addr, err))
			continue
		}
		sent++
	}
	c.log(fmt.Sprintf("probe sent to %d/%d targets on port %d", sent, len(targets), port))

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("arm discovery deadline: %w", err)
	}

	buf := make([]byte, maxResponseBytes)
	n, from, err := conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			c.log(fmt.Sprintf("no response within %s", timeout))
			return nil, nil
		}
		return nil, fmt.Errorf("read discovery response: %w", err)
	}

	c.log(fmt.Sprintf("response received from %s (%d bytes)", from, n))

	resp, err := protocol.ParseDiscoveryResponse(buf[:n])
	if err != nil {
		c.logger.Debug().Str("from", from.String()).Err(err).Msg("unusable discovery response")
		c.log(fmt.Sprintf("unusable response from %s: %v", from, err))
		return nil, nil
	}

	c.log("stream url: " + resp.WSURL)

	return &DiscoveredServer{
		StreamURL: resp.WSURL,
		InfoURL:   resp.HTTPInfoURL,
		Name:      resp.Name,
		Version:   resp.Version,
	}, nil
}

// broadcastTargets computes the probe target set: the global broadcast
// address, one broadcast address per eligible interface, plus any configured
// extras, deduplicated by literal address. Enumeration failure falls back to
// the global broadcast address alone.
func (c *Client) broadcastTargets() []net.IP {
	targets := []net.IP{net.IPv4bcast}
	seen := map[string]bool{net.IPv4bcast.String(): true}

	ifaces, err := net.Interfaces()
	if err != nil {
		c.logger.Warn().Err(err).Msg("interface enumeration failed, using global broadcast only")
		c.log(fmt.Sprintf("interface enumeration failed: %v", err))
	} else {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagUp == 0 ||
				iface.Flags&net.FlagLoopback != 0 ||
				iface.Flags&net.FlagBroadcast == 0 {
				continue
			}
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}
			for _, addr := range addrs {
				ipNet, ok := addr.(*net.IPNet)
				if !ok {
					continue
				}
				bcast := broadcastAddr(ipNet)
				if bcast == nil || seen[bcast.String()] {
					continue
				}
				seen[bcast.String()] = true
				targets = append(targets, bcast)
			}
		}
	}

	for _, extra := range c.extra {
		ip := net.ParseIP(extra)
		if ip == nil || ip.To4() == nil || seen[ip.String()] {
			continue
		}
		seen[ip.String()] = true
		targets = append(targets, ip.To4())
	}

	return targets
}

// broadcastAddr derives the IPv4 directed broadcast address of a subnet.
func broadcastAddr(ipNet *net.IPNet) net.IP {
	ip4 := ipNet.IP.To4()
	if ip4 == nil {
		return nil
	}
	mask := ipNet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return nil
	}
	bcast := make(net.IP, net.IPv4len)
	for i := range bcast {
		bcast[i] = ip4[i] | ^mask[i]
	}
	return bcast
}

func (c *Client) log(line string) {
	if c.diag != nil {
		c.diag(line)
	}
}
