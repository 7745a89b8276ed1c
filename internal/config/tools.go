package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ToolEntry is a single named manual endpoint.
type ToolEntry struct {
	Name  string `yaml:"name"`
	WSURL string `yaml:"ws_url"`
}

// ToolsFile is the parsed YAML structure naming manual endpoints:
// tools: [{name, ws_url}]
type ToolsFile struct {
	Tools []ToolEntry `yaml:"tools"`
}

// LoadToolsFile parses a YAML tools file from the given path.
// Returns nil if path is empty (no tools file).
func LoadToolsFile(path string) ([]ToolEntry, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools file: %w", err)
	}

	var tf ToolsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse tools file: %w", err)
	}

	for i, entry := range tf.Tools {
		if strings.TrimSpace(entry.Name) == "" {
			return nil, fmt.Errorf("tools file entry %d: name is required", i)
		}
		if err := validateStreamURL(entry.WSURL, fmt.Sprintf("tools file entry %q", entry.Name)); err != nil {
			return nil, err
		}
	}

	return tf.Tools, nil
}

// LookupTool resolves a named entry, nil when absent.
func LookupTool(entries []ToolEntry, name string) *ToolEntry {
	for i := range entries {
		if entries[i].Name == name {
			return &entries[i]
		}
	}
	return nil
}
