package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/baely/tab/internal/common/errors"
	"github.com/baely/tab/internal/ledger"
)

// FileStore keeps the snapshot in a single file at a fixed path
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// FileConfig contains configuration for the FileStore
type FileConfig struct {
	Path   string
	Logger *slog.Logger
}

// NewFileStore creates a FileStore, making the snapshot directory if needed
func NewFileStore(cfg *FileConfig) (*FileStore, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		cfg.Logger.Error("Failed to create snapshot directory", "error", err, "path", dir)
		return nil, errors.Wrap(err, "failed to create snapshot directory")
	}
	return &FileStore{
		path:   cfg.Path,
		logger: cfg.Logger,
		now:    time.Now,
	}, nil
}

// Path returns the snapshot file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file is an empty ledger.
func (s *FileStore) Load(ctx context.Context) ([]ledger.AccountView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("No snapshot file found, starting fresh", "path", s.path)
			return nil, nil
		}
		s.logger.Error("Failed to read snapshot file", "error", err, "path", s.path)
		return nil, errors.Wrap(err, "failed to read snapshot")
	}

	accounts, err := Decode(data)
	if err != nil {
		s.logger.Error("Failed to decode snapshot file", "error", err, "path", s.path)
		s.moveAsideLocked()
		return nil, err
	}

	s.logger.Info("Snapshot loaded from file", "path", s.path, "accounts", len(accounts))
	return accounts, nil
}

// moveAsideLocked renames an undecodable snapshot to <path>.corrupt-<time> so
// the next Save cannot overwrite it
func (s *FileStore) moveAsideLocked() {
	aside := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(s.path, aside); err != nil {
		s.logger.Error("Failed to move corrupt snapshot aside", "error", err, "path", s.path)
		return
	}
	s.logger.Warn("Corrupt snapshot moved aside", "path", s.path, "moved_to", aside)
}

// Save replaces the snapshot. The new content is written and synced to a
// temporary file in the same directory and renamed over the old one, so a
// reader sees either the previous or the new snapshot, never a partial one.
func (s *FileStore) Save(ctx context.Context, accounts []ledger.AccountView) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(accounts, s.now())
	if err != nil {
		return errors.Wrap(err, "failed to encode snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary snapshot")
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write temporary snapshot")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to sync temporary snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temporary snapshot")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return errors.Wrap(err, "failed to replace snapshot")
	}
	committed = true

	// Persist the rename itself. Not every platform can sync a directory.
	if d, err := os.Open(dir); err == nil {
		if err := d.Sync(); err != nil {
			s.logger.Debug("Failed to sync snapshot directory", "error", err, "path", dir)
		}
		_ = d.Close()
	}

	s.logger.Debug("Snapshot saved", "path", s.path, "accounts", len(accounts))
	return nil
}
