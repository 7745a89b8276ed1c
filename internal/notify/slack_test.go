package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlackNotifier_PostsBlockMessage(t *testing.T) {
	var body []byte
	received := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		received <- struct{}{}
	}))
	defer server.Close()

	notifier := NewSlackNotifier(zerolog.Nop(), server.URL,
		WithSlackTiming(time.Millisecond, 10, time.Millisecond, 5*time.Millisecond, 50*time.Millisecond))

	if err := notifier.Notify(context.Background(), connectedEvent()); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("slack webhook was never called")
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode slack payload: %v", err)
	}
	if _, ok := decoded["blocks"]; !ok {
		t.Fatalf("payload missing blocks: %s", body)
	}
	if !strings.Contains(string(body), "tool connected") {
		t.Fatalf("payload missing summary: %s", body)
	}
}

func TestNewSlackNotifier_EmptyURLIsNoop(t *testing.T) {
	notifier := NewSlackNotifier(zerolog.Nop(), "")
	if _, ok := notifier.(*NoopNotifier); !ok {
		t.Fatalf("expected noop notifier, got %T", notifier)
	}
}

func TestBuildSlackMessage_IncludesReason(t *testing.T) {
	message := buildSlackMessage(connectedEvent())
	if message.Blocks == nil || len(message.Blocks.BlockSet) != 3 {
		t.Fatalf("expected header, section and context blocks")
	}
	if !strings.Contains(message.Text, "tool connected") {
		t.Fatalf("summary = %q", message.Text)
	}
}
