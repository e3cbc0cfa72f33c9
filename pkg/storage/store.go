package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/planet0104/keyboard-counter/pkg/counter"
)

// FileName is the name of the state file inside the config directory.
const FileName = "keyboard-counter.bin"

// DefaultPath returns <UserConfigDir>/keyboard-counter/keyboard-counter.bin.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("storage: locate config dir: %w", err)
	}
	return filepath.Join(dir, "keyboard-counter", FileName), nil
}

// Store reads and writes a single state file.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore returns a Store backed by path. A nil logger uses slog.Default().
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Read returns the persisted state. It fails with ErrNoState when the file
// does not exist and with ErrBadFormat when it cannot be decoded.
func (s *Store) Read() (counter.State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return counter.State{}, ErrNoState
	}
	if err != nil {
		return counter.State{}, fmt.Errorf("storage: read %s: %w", s.path, err)
	}
	return Decode(data)
}

// Load is Read with every failure folded into "no prior state". Corrupt or
// unreadable files are logged at warn; a missing file is normal on first run.
func (s *Store) Load() (counter.State, bool) {
	state, err := s.Read()
	switch {
	case err == nil:
		return state, true
	case errors.Is(err, ErrNoState):
		s.logger.Debug("no persisted state", "path", s.path)
	default:
		s.logger.Warn("discarding persisted state", "path", s.path, "error", err)
	}
	return counter.State{}, false
}

// Save overwrites the state file atomically, creating its directory.
func (s *Store) Save(state counter.State) error {
	data, err := Encode(state)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create directory %s: %w", dir, err)
	}
	if err := atomicWrite(s.path, data, dir); err != nil {
		return fmt.Errorf("storage: write %s: %w", s.path, err)
	}
	return nil
}

// atomicWrite writes data to path via a temporary file in tmpDir and rename.
func atomicWrite(path string, data []byte, tmpDir string) error {
	tmp, err := os.CreateTemp(tmpDir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	success = true
	return nil
}
