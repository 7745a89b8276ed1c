package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last-tool.json")
	store := NewFileStore(path, zerolog.Nop())

	tool := LastTool{
		StreamURL:   "ws://10.0.0.5:8080/ws",
		InfoURL:     "http://10.0.0.5:8080/info",
		Name:        "studio",
		Version:     "2.1.0",
		ConnectedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	if err := store.Save(context.Background(), tool); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("expected a record")
	}
	if loaded != tool {
		t.Fatalf("loaded = %+v, want %+v", loaded, tool)
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), zerolog.Nop())

	_, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("missing file must report no record")
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last-tool.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	store := NewFileStore(path, zerolog.Nop())
	_, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("corrupt file must report no record")
	}
}

func TestFileStore_OverwriteKeepsLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last-tool.json")
	store := NewFileStore(path, zerolog.Nop())

	first := LastTool{StreamURL: "ws://10.0.0.5:8080/ws", ConnectedAt: time.Now().UTC().Truncate(time.Second)}
	second := LastTool{StreamURL: "ws://10.0.0.9:8080/ws", ConnectedAt: first.ConnectedAt.Add(time.Minute)}

	if err := store.Save(context.Background(), first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.Save(context.Background(), second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	loaded, ok, err := store.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded.StreamURL != second.StreamURL {
		t.Fatalf("loaded %q, want latest record", loaded.StreamURL)
	}
}

func TestFileStore_CanceledContext(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "last-tool.json"), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Save(ctx, LastTool{StreamURL: "ws://10.0.0.5:8080/ws"}); err == nil {
		t.Fatal("expected save with canceled context to fail")
	}
	if _, _, err := store.Load(ctx); err == nil {
		t.Fatal("expected load with canceled context to fail")
	}
}
