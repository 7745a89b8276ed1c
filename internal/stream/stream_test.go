package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type recordingHandler struct {
	mu        sync.Mutex
	texts     []string
	binaries  int
	closeCode int
	errCode   int
	err       error
	done      chan struct{}
	once      sync.Once
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{done: make(chan struct{})}
}

func (h *recordingHandler) OnText(text string) {
	h.mu.Lock()
	h.texts = append(h.texts, text)
	h.mu.Unlock()
}

func (h *recordingHandler) OnBinary(_ []byte) {
	h.mu.Lock()
	h.binaries++
	h.mu.Unlock()
}

func (h *recordingHandler) OnClose(code int, _ string) {
	h.mu.Lock()
	h.closeCode = code
	h.mu.Unlock()
	h.once.Do(func() { close(h.done) })
}

func (h *recordingHandler) OnError(code int, err error) {
	h.mu.Lock()
	h.errCode = code
	h.err = err
	h.mu.Unlock()
	h.once.Do(func() { close(h.done) })
}

func (h *recordingHandler) wait(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for stream to end")
	}
}

// startStreamServer runs a WebSocket endpoint driving serve against each
// accepted connection.
func startStreamServer(t *testing.T, serve func(ws *websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serve(ws)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConn_TextAndBinaryDelivery(t *testing.T) {
	url := startStreamServer(t, func(ws *websocket.Conn) {
		_ = ws.WriteMessage(websocket.TextMessage, []byte("A"))
		_ = ws.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		_ = ws.WriteMessage(websocket.TextMessage, []byte("B"))
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	})

	conn, err := Dial(context.Background(), url, zerolog.Nop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	handler := newRecordingHandler()
	go conn.ReadLoop(handler)
	handler.wait(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.texts) != 2 || handler.texts[0] != "A" || handler.texts[1] != "B" {
		t.Fatalf("texts = %v, want [A B]", handler.texts)
	}
	if handler.binaries != 1 {
		t.Fatalf("binaries = %d, want 1", handler.binaries)
	}
	if handler.closeCode != websocket.CloseNormalClosure {
		t.Fatalf("close code = %d, want normal closure", handler.closeCode)
	}
}

func TestConn_AbruptCloseReportsError(t *testing.T) {
	url := startStreamServer(t, func(ws *websocket.Conn) {
		// Drop the TCP connection without a close frame.
		_ = ws.UnderlyingConn().Close()
	})

	conn, err := Dial(context.Background(), url, zerolog.Nop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	handler := newRecordingHandler()
	go conn.ReadLoop(handler)
	handler.wait(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.err == nil {
		t.Fatal("expected a transport error")
	}
	if handler.closeCode != 0 {
		t.Fatal("abrupt loss must not report a clean close")
	}
}

func TestConn_LocalCloseSilencesReadLoop(t *testing.T) {
	block := make(chan struct{})
	url := startStreamServer(t, func(ws *websocket.Conn) {
		<-block
		_ = ws.Close()
	})
	defer close(block)

	conn, err := Dial(context.Background(), url, zerolog.Nop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	handler := newRecordingHandler()
	loopDone := make(chan struct{})
	go func() {
		conn.ReadLoop(handler)
		close(loopDone)
	}()

	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close must be a no-op, got %v", err)
	}

	select {
	case <-loopDone:
	case <-time.After(3 * time.Second):
		t.Fatal("read loop did not exit after local close")
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.err != nil || handler.closeCode != 0 {
		t.Fatalf("local close must not surface callbacks, got err=%v close=%d", handler.err, handler.closeCode)
	}
}

func TestConn_WriteText(t *testing.T) {
	received := make(chan string, 1)
	url := startStreamServer(t, func(ws *websocket.Conn) {
		_, data, err := ws.ReadMessage()
		if err == nil {
			received <- string(data)
		}
	})

	conn, err := Dial(context.Background(), url, zerolog.Nop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteText(`{"type":"command","name":"pause"}`); err != nil {
		t.Fatalf("write text: %v", err)
	}

	select {
	case got := <-received:
		if got != `{"type":"command","name":"pause"}` {
			t.Fatalf("server received %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never received the command")
	}
}

func TestConn_WriteAfterCloseFails(t *testing.T) {
	url := startStreamServer(t, func(ws *websocket.Conn) {
		_, _, _ = ws.ReadMessage()
	})

	conn, err := Dial(context.Background(), url, zerolog.Nop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.Close()

	if err := conn.WriteText("late"); err == nil {
		t.Fatal("expected write on closed stream to fail")
	}
}

func TestDial_RefusedEndpoint(t *testing.T) {
	if _, err := Dial(context.Background(), "ws://127.0.0.1:1/ws", zerolog.Nop()); err == nil {
		t.Fatal("expected dial failure")
	}
}
