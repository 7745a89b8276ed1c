// Package stream wraps the persistent WebSocket to a charting tool. The
// connection is push-driven: a single read loop turns inbound traffic into
// handler callbacks, and the owner never polls it.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

// Handler receives inbound stream events. Callbacks run on the read loop
// goroutine; exactly one of OnClose/OnError ends the loop.
type Handler interface {
	// OnText delivers one inbound text message.
	OnText(text string)
	// OnBinary delivers one inbound binary message. The protocol is currently
	// text-only; implementations may discard the payload.
	OnBinary(data []byte)
	// OnClose reports a clean peer-initiated close.
	OnClose(code int, reason string)
	// OnError reports a transport failure. code is the protocol status code
	// when the failure carried one, zero otherwise.
	OnError(code int, err error)
}

// Conn is one live stream connection. Close is idempotent and safe to call
// concurrently with the read loop.
type Conn struct {
	logger zerolog.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

// Dial opens the stream handshake against url. The context bounds the
// handshake only; the returned connection outlives it.
func Dial(ctx context.Context, url string, logger zerolog.Logger) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stream handshake rejected: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	logger.Info().Str("url", url).Msg("stream opened")

	return &Conn{logger: logger, ws: ws}, nil
}

// ReadLoop pumps inbound messages into the handler until the connection ends.
// Run it on its own goroutine; it returns after OnClose or OnError, or
// silently after a local Close.
func (c *Conn) ReadLoop(handler Handler) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.dispatchReadFailure(handler, err)
			return
		}

		switch msgType {
		case websocket.TextMessage:
			handler.OnText(string(data))
		case websocket.BinaryMessage:
			handler.OnBinary(data)
		}
	}
}

func (c *Conn) dispatchReadFailure(handler Handler, err error) {
	if c.isClosed() {
		// Local close tore down the socket; the owner already knows.
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			handler.OnClose(closeErr.Code, closeErr.Text)
		default:
			handler.OnError(closeErr.Code, err)
		}
		return
	}

	handler.OnError(0, err)
}

// WriteText sends one text message.
func (c *Conn) WriteText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("stream is closed")
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("write stream message: %w", err)
	}
	return nil
}

// EchoClose answers a peer close with a close frame of the same code.
// Best-effort: failures are logged and discarded.
func (c *Conn) EchoClose(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if code < 1000 || code == websocket.CloseNoStatusReceived {
		code = websocket.CloseNormalClosure
	}
	message := websocket.FormatCloseMessage(code, "")
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug().Err(err).Msg("close echo failed")
	}
}

// Close tears down the connection. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	err := c.ws.Close()
	if err != nil {
		c.logger.Debug().Err(err).Msg("stream close failed")
		return err
	}
	c.logger.Info().Msg("stream closed")
	return nil
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
