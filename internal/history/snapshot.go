package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot slot keys. The session log and the sync cursor are the only
// two slots this package persists.
const (
	KeySessions = "history.sessions"
	KeyLastSync = "history.lastSync"
)

// SnapshotStore is a durable key-value slot for serialized store state.
// Get returns (nil, nil) for a key that has never been written.
type SnapshotStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

const snapshotDirName = "tunelog"

// FileStore persists snapshot slots as files in a directory, one file
// per key.
type FileStore struct {
	dir string
}

// DefaultFileStore returns a FileStore rooted at the user config
// directory, e.g. ~/.config/tunelog.
func DefaultFileStore() (*FileStore, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("getting user config dir: %w", err)
	}
	return NewFileStore(filepath.Join(configDir, snapshotDirName)), nil
}

// NewFileStore creates a FileStore rooted at dir. The directory is
// created on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory snapshots are written to.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Get reads the slot for key.
// Returns (nil, nil) if the slot file does not exist.
func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", key, err)
	}
	return data, nil
}

// Set writes the slot for key, creating the directory if needed.
func (f *FileStore) Set(_ context.Context, key string, value []byte) error {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := os.WriteFile(f.path(key), value, 0600); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", key, err)
	}
	return nil
}

// Delete removes the slot for key.
// Returns nil if the slot file does not exist.
func (f *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing snapshot %s: %w", key, err)
	}
	return nil
}
