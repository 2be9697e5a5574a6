// Package snapshot persists the state projection as a JSON file under the
// data directory. Writes are atomic (temp file + rename) so a crash mid-save
// leaves the previous snapshot intact.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/omnihq/omni/internal/logging"
	"github.com/omnihq/omni/internal/state"
)

// FileStore reads and writes one snapshot file.
type FileStore struct {
	path string
	log  *logging.Logger
}

// NewFileStore returns a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		log:  logging.Named("snapshot"),
	}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Save writes the snapshot atomically with 0600 permissions.
func (f *FileStore) Save(snap state.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot file. A missing file is not an error: it reports
// found=false so first-run initialization can proceed with defaults.
func (f *FileStore) Load() (*state.Snapshot, bool, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap state.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &snap, true, nil
}
