// Package relay owns the single outbound connection to a charting tool. It
// drives the discovery handshake, the connection state machine, and the
// transport callbacks that feed the snapshot store. It never retries on its
// own; reconnect policy belongs to the caller.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chartlink/internal/discovery"
	"chartlink/internal/metrics"
	"chartlink/internal/snapshot"
	"chartlink/internal/stream"
	"chartlink/internal/transition"
)

const (
	defaultDiscoveryPort    = 35601
	defaultDiscoveryTimeout = 3 * time.Second
	defaultDialTimeout      = 10 * time.Second
)

// Conn is the slice of a stream connection the relay drives. *stream.Conn
// satisfies it; tests substitute fakes.
type Conn interface {
	ReadLoop(handler stream.Handler)
	WriteText(text string) error
	EchoClose(code int)
	Close() error
}

// DiscoverFunc performs one discovery attempt.
type DiscoverFunc func(port int, timeout time.Duration) (*discovery.DiscoveredServer, error)

// DialFunc opens one stream connection.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// Relay is constructed once per process and exclusively owns the live
// connection handle. All public operations are safe for concurrent use;
// connect operations serialize.
type Relay struct {
	logger  zerolog.Logger
	store   *snapshot.Store
	metrics *metrics.Metrics

	port        int
	timeout     time.Duration
	dialTimeout time.Duration

	discover     DiscoverFunc
	dial         DialFunc
	onTransition func(transition.Event)
	onDiscovered func(discovery.DiscoveredServer)

	opMu sync.Mutex // serializes connect/disconnect operations

	connMu sync.Mutex
	conn   Conn
}

// Option customizes relay behavior.
type Option func(*Relay)

// WithDiscovery sets the discovery port and response timeout.
func WithDiscovery(port int, timeout time.Duration) Option {
	return func(r *Relay) {
		if port > 0 {
			r.port = port
		}
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithDialTimeout bounds the stream handshake.
func WithDialTimeout(timeout time.Duration) Option {
	return func(r *Relay) {
		if timeout > 0 {
			r.dialTimeout = timeout
		}
	}
}

// WithMetrics wires prometheus collectors; nil disables them.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithDiscoverFunc overrides the discovery step.
func WithDiscoverFunc(fn DiscoverFunc) Option {
	return func(r *Relay) {
		r.discover = fn
	}
}

// WithDialFunc overrides how stream connections open.
func WithDialFunc(fn DialFunc) Option {
	return func(r *Relay) {
		r.dial = fn
	}
}

// WithTransitionHook installs an observer called on every state change.
// The hook runs on the mutating goroutine and must not call back into the
// relay's connect operations.
func WithTransitionHook(hook func(transition.Event)) Option {
	return func(r *Relay) {
		r.onTransition = hook
	}
}

// WithDiscoveredHook installs an observer for successful discovery results,
// invoked before the stream opens. The server value is not retained by the
// relay afterward.
func WithDiscoveredHook(hook func(discovery.DiscoveredServer)) Option {
	return func(r *Relay) {
		r.onDiscovered = hook
	}
}

// New constructs a Relay around the given snapshot store.
func New(logger zerolog.Logger, store *snapshot.Store, opts ...Option) *Relay {
	r := &Relay{
		logger:      logger,
		store:       store,
		port:        defaultDiscoveryPort,
		timeout:     defaultDiscoveryTimeout,
		dialTimeout: defaultDialTimeout,
	}

	client := discovery.NewClient(logger, discovery.WithDiagnostics(store.Log))
	r.discover = client.Discover
	r.dial = func(ctx context.Context, url string) (Conn, error) {
		return stream.Dial(ctx, url, logger)
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// DiscoverAndConnect runs one discovery attempt and, on success, opens the
// stream. Any prior connection is torn down first. The diagnostic log and
// error record reset at entry; the discovery wait itself is not cancelable.
func (r *Relay) DiscoverAndConnect() Result {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.store.ResetLog()
	r.store.ClearError()
	r.store.Log("discovery attempt started")

	r.closeCurrent()
	r.setState(snapshot.StateDiscovering, "discovery started")

	server, err := r.discover(r.port, r.timeout)
	if err != nil {
		message := fmt.Sprintf("discovery failed: %v", err)
		r.store.SetError(message)
		r.store.Log(message)
		r.setState(snapshot.StateError, message)
		r.countDiscovery("error")
		return errorResult(message)
	}
	if server == nil {
		r.setState(snapshot.StateDisconnected, "discovery found no tool")
		r.countDiscovery("not_found")
		return notFoundResult()
	}

	r.countDiscovery("ok")
	if r.onDiscovered != nil {
		r.onDiscovered(*server)
	}

	result := r.open(server.StreamURL)
	if result.Kind == KindOK {
		result.URL = server.StreamURL
	}
	return result
}

// ConnectWithURL bypasses discovery and opens the stream directly. The same
// pre-close-then-open discipline applies; the diagnostic log and error record
// are left alone.
func (r *Relay) ConnectWithURL(url string) Result {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.closeCurrent()
	return r.open(url)
}

// Disconnect force-closes any live connection. When the current state is
// error it stays error so the caller can still observe the failure cause;
// otherwise the relay ends disconnected. Idempotent.
func (r *Relay) Disconnect() {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.closeCurrent()
	if r.store.State() != snapshot.StateError {
		r.setState(snapshot.StateDisconnected, "disconnect requested")
	}
}

// SendCommand pushes one outbound text message. The current protocol defines
// no commands; this is the passthrough reserved for them.
func (r *Relay) SendCommand(text string) error {
	r.connMu.Lock()
	conn := r.conn
	r.connMu.Unlock()

	if conn == nil {
		return errors.New("not connected")
	}
	return conn.WriteText(text)
}

// State returns the current connection state.
func (r *Relay) State() snapshot.ConnectionState {
	return r.store.State()
}

// LatestFrameJSON returns the latest frame text, empty before the first frame.
func (r *Relay) LatestFrameJSON() string {
	return r.store.Frame()
}

// LastError returns the last error text, empty if none.
func (r *Relay) LastError() string {
	return r.store.LastError()
}

// DiscoverDebugLog returns the newline-joined diagnostic log.
func (r *Relay) DiscoverDebugLog() string {
	return r.store.DebugLog()
}

// open walks connecting -> connected/error for the given URL.
func (r *Relay) open(url string) Result {
	r.setState(snapshot.StateConnecting, "opening stream")
	r.store.Log("opening stream " + url)

	ctx, cancel := context.WithTimeout(context.Background(), r.dialTimeout)
	defer cancel()

	conn, err := r.dial(ctx, url)
	if err != nil {
		message := fmt.Sprintf("stream open failed: %v", err)
		r.store.SetError(message)
		r.store.Log(message)
		r.setState(snapshot.StateError, message)
		if r.metrics != nil {
			r.metrics.IncStreamFaults()
		}
		return errorResult(message)
	}

	r.connMu.Lock()
	r.conn = conn
	r.connMu.Unlock()

	r.setState(snapshot.StateConnected, "stream open")
	r.store.Log("stream opened")

	go conn.ReadLoop(&connHandler{relay: r, conn: conn})

	return okResult("")
}

// closeCurrent tears down the live connection, best-effort. Close failures
// are discarded, never surfaced.
func (r *Relay) closeCurrent() {
	r.connMu.Lock()
	conn := r.conn
	r.conn = nil
	r.connMu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.Close()
	r.store.Log("previous stream closed")
}

func (r *Relay) setState(to snapshot.ConnectionState, reason string) {
	from := r.store.State()
	if from == to {
		return
	}
	r.store.SetState(to)
	if r.metrics != nil {
		r.metrics.SetConnectionState(int(to))
	}
	r.logger.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Str("reason", reason).
		Msg("connection state changed")

	if r.onTransition != nil {
		r.onTransition(transition.Event{From: from, To: to, Reason: reason, At: time.Now()})
	}
}

func (r *Relay) countDiscovery(result string) {
	if r.metrics != nil {
		r.metrics.IncDiscoveryAttempts(result)
	}
}

// connHandler binds transport callbacks to the connection they came from so
// a torn-down stream cannot mutate state owned by its successor.
type connHandler struct {
	relay *Relay
	conn  Conn
}

func (h *connHandler) current() bool {
	h.relay.connMu.Lock()
	defer h.relay.connMu.Unlock()
	return h.relay.conn == h.conn
}

func (h *connHandler) OnText(text string) {
	if !h.current() {
		return
	}
	h.relay.store.SetFrame(text)
	if h.relay.metrics != nil {
		h.relay.metrics.ObserveFrame(len(text))
	}
}

func (h *connHandler) OnBinary(data []byte) {
	if !h.current() {
		return
	}
	// Text-only protocol; binary framing is reserved.
	if h.relay.metrics != nil {
		h.relay.metrics.IncBinaryIgnored()
	}
	h.relay.logger.Debug().Int("bytes", len(data)).Msg("binary stream message ignored")
}

func (h *connHandler) OnClose(code int, reason string) {
	h.relay.connMu.Lock()
	if h.relay.conn != h.conn {
		h.relay.connMu.Unlock()
		return
	}
	h.relay.conn = nil
	h.relay.connMu.Unlock()

	h.relay.setState(snapshot.StateClosing, "peer close")
	if reason != "" {
		h.relay.store.Log(fmt.Sprintf("stream closed by peer (code %d): %s", code, reason))
	} else {
		h.relay.store.Log(fmt.Sprintf("stream closed by peer (code %d)", code))
	}

	h.conn.EchoClose(code)
	_ = h.conn.Close()

	h.relay.setState(snapshot.StateDisconnected, "peer close complete")
}

func (h *connHandler) OnError(code int, err error) {
	h.relay.connMu.Lock()
	if h.relay.conn != h.conn {
		h.relay.connMu.Unlock()
		return
	}
	h.relay.conn = nil
	h.relay.connMu.Unlock()

	message := fmt.Sprintf("stream failure: %v", err)
	if code != 0 {
		message = fmt.Sprintf("stream failure (status %d): %v", code, err)
	}
	h.relay.store.SetError(message)
	h.relay.store.Log(message)
	_ = h.conn.Close()
	if h.relay.metrics != nil {
		h.relay.metrics.IncStreamFaults()
	}
	h.relay.setState(snapshot.StateError, message)
}
