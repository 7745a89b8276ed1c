package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeToolsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write tools file: %v", err)
	}
	return path
}

func TestLoadToolsFile(t *testing.T) {
	path := writeToolsFile(t, `
tools:
  - name: studio
    ws_url: ws://10.0.0.5:8080/ws
  - name: laptop
    ws_url: wss://192.168.1.20:9443/ws
`)

	entries, err := LoadToolsFile(path)
	if err != nil {
		t.Fatalf("load tools file: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	studio := LookupTool(entries, "studio")
	if studio == nil || studio.WSURL != "ws://10.0.0.5:8080/ws" {
		t.Fatalf("studio lookup = %+v", studio)
	}
	if LookupTool(entries, "missing") != nil {
		t.Fatal("missing tool must resolve to nil")
	}
}

func TestLoadToolsFile_EmptyPath(t *testing.T) {
	entries, err := LoadToolsFile("")
	if err != nil || entries != nil {
		t.Fatalf("empty path: entries=%v err=%v", entries, err)
	}
}

func TestLoadToolsFile_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing name": "tools:\n  - ws_url: ws://10.0.0.5:8080/ws\n",
		"bad scheme":   "tools:\n  - name: studio\n    ws_url: http://10.0.0.5:8080/ws\n",
		"not yaml":     "tools: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeToolsFile(t, content)
			if _, err := LoadToolsFile(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadToolsFile_MissingFile(t *testing.T) {
	if _, err := LoadToolsFile(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
