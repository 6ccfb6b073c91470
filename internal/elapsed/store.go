// Package elapsed tracks local elapsed-time display state for photos the
// server is currently analyzing. Start timestamps are persisted so elapsed
// counters survive a process restart.
package elapsed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// storeVersion is bumped on state file format changes.
const storeVersion = "1.0.0"

// storeFile is the on-disk format: one start timestamp per tracked photo.
type storeFile struct {
	Version string           `json:"version"`
	Started map[string]int64 `json:"started"` // photo id -> start epoch millis
}

// Store is the serialize/restore boundary for elapsed start timestamps.
// All access to the keyed map goes through the Tracker; the store only
// loads and saves it. A file lock guards against concurrent CLI invocations
// writing the same state file.
type Store struct {
	mu       sync.Mutex
	filePath string
	lock     *flock.Flock
}

// NewStore creates a store backed by the given file path.
func NewStore(filePath string) *Store {
	return &Store{
		filePath: filePath,
		lock:     flock.New(filePath + ".lock"),
	}
}

// Restore reads the persisted start timestamps.
// A missing file is a fresh state, not an error.
func (s *Store) Restore() (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock state file: %w", err)
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]int64), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var sf storeFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if sf.Started == nil {
		sf.Started = make(map[string]int64)
	}
	return sf.Started, nil
}

// Flush writes the start timestamps to disk.
// Write to temp file first, then rename for atomicity.
func (s *Store) Flush(started map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer s.lock.Unlock()

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(storeFile{Version: storeVersion, Started: started}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}
