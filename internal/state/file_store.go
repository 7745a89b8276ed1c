package state

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// FileStore persists the last-tool record as JSON on disk.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore returns a JSON-backed store.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

// Load reads the record from disk. Missing or corrupt files report no record
// with a warning rather than an error.
func (s *FileStore) Load(ctx context.Context) (LastTool, bool, error) {
	if err := ctx.Err(); err != nil {
		return LastTool{}, false, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return LastTool{}, false, nil
		}
		return LastTool{}, false, err
	}

	var tool LastTool
	if err := json.Unmarshal(data, &tool); err != nil {
		s.logger.Warn().Str("path", s.path).Err(err).Msg("state file corrupt, ignoring")
		return LastTool{}, false, nil
	}
	if strings.TrimSpace(tool.StreamURL) == "" {
		return LastTool{}, false, nil
	}
	return tool, true, nil
}

// Save writes the record to disk atomically.
func (s *FileStore) Save(ctx context.Context, tool LastTool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, ".last-tool-*.json")
	if err != nil {
		return err
	}

	cleanup := func() {
		_ = os.Remove(tempFile.Name())
	}

	encoder := json.NewEncoder(tempFile)
	if err := encoder.Encode(tool); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Close(); err != nil {
		cleanup()
		return err
	}

	if err := os.Rename(tempFile.Name(), s.path); err != nil {
		cleanup()
		return err
	}

	return nil
}
