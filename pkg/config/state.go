package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is stamped into every saved state file. Load rejects files
// written by a newer format.
const StateVersion = 1

// State is the runtime state the gateway carries across restarts.
type State struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`

	// DeviceID is the gateway identity, kept stable once generated.
	DeviceID string `json:"device_id"`

	// LastMode is the aggregation mode at last save, restored on boot.
	LastMode string `json:"last_mode,omitempty"`
}

// StateStore reads and writes the gateway state file. It is safe for
// concurrent use.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a store over the state file at path. The file is
// not touched until Save or Load.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Save stamps the version and timestamp and writes the state file,
// creating parent directories as needed.
func (s *StateStore) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Load reads the state file. A missing file is not an error; it returns
// nil state, as does a first boot.
func (s *StateStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("state %s: version %d unsupported (max %d)",
			s.path, state.Version, StateVersion)
	}
	return &state, nil
}

// Clear removes the state file, if present.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
