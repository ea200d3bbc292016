package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore persists a single session record as a JSON file. Saves
// write to a temporary file in the same directory and rename it into
// place, so a concurrent Load never sees a torn record.
type FileStore struct {
	path   string
	logger *slog.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore backed by the given file path. The
// parent directory is created if it does not exist. A nil logger
// defaults to slog.Default().
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session: create store dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}, nil
}

// DefaultPath returns the per-user session record path for an agent
// name: ~/.aegnix/sessions/<name>.json.
func DefaultPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("session: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".aegnix", "sessions", name+".json"), nil
}

// Load reads the session record. An absent or unreadable record yields
// ok=false; read failures are logged, never raised.
func (f *FileStore) Load(_ context.Context) (*State, bool) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Warn("session load failed", "path", f.path, "error", err)
		}
		return nil, false
	}
	var state State
	if err := json.Unmarshal(b, &state); err != nil {
		f.logger.Warn("session record unreadable", "path", f.path, "error", err)
		return nil, false
	}
	return &state, true
}

// Save writes the session record atomically (temp file then rename).
func (f *FileStore) Save(_ context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("session: state is nil")
	}
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return fmt.Errorf("session: create temp file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("session: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("session: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("session: rename into place: %w", err)
	}
	return nil
}

// Clear removes the session record. Idempotent.
func (f *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: clear record: %w", err)
	}
	return nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}
