package guard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateVersion is the schema version stamped into the persisted state so
// future layouts can be migrated instead of misread.
const StateVersion = 1

// State is the process-wide pause flag. It lives on disk because guarded
// commands run as separate invocations and must all observe the same view.
type State struct {
	Version  int       `json:"version"`
	Paused   bool      `json:"paused"`
	Reason   string    `json:"reason,omitempty"`
	Command  string    `json:"command,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	PausedAt time.Time `json:"paused_at,omitempty"`
}

// LoadState reads the persisted state. A missing file means not paused; a
// corrupt file is treated as paused so a torn write never silently unpauses
// automation.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &State{Version: StateVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read guard state: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return &State{
			Version: StateVersion,
			Paused:  true,
			Reason:  "corrupt_state",
			Detail:  fmt.Sprintf("unreadable guard state file: %v", err),
		}, nil
	}
	return &s, nil
}

// SaveState writes the state atomically: full content to a temp file in the
// same directory, then a single rename. Readers see either the old or the
// new document, never a torn one.
func SaveState(path string, s *State) error {
	s.Version = StateVersion
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create guard state dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal guard state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".guard-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace guard state: %w", err)
	}
	return nil
}
