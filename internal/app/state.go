package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	StateFileName      = ".mongokit.state.json"
	StateSchemaVersion = "1.0"
)

// Session records one container started by Up.
type Session struct {
	RunID            string    `json:"run_id"`
	ProfileName      string    `json:"profile_name"`
	ProfilePath      string    `json:"profile_path"`
	Runtime          string    `json:"runtime"`
	ContainerID      string    `json:"container_id"`
	ContainerName    string    `json:"container_name,omitempty"`
	Image            string    `json:"image"`
	ConnectionString string    `json:"connection_string"`
	CreatedAt        time.Time `json:"created_at"`
}

// SessionState is the content of the state file.
type SessionState struct {
	SchemaVersion string    `json:"schema_version"`
	Sessions      []Session `json:"sessions"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// loadState reads the state file at path. A missing file yields an empty state.
func loadState(path string) (*SessionState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &SessionState{SchemaVersion: StateSchemaVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.SchemaVersion != StateSchemaVersion {
		return nil, fmt.Errorf("unsupported state file schema version %q", state.SchemaVersion)
	}
	return &state, nil
}

// saveState persists state, removing the file once no sessions remain.
// The file holds connection strings with credentials and is only readable by its owner.
func saveState(path string, state *SessionState) error {
	if len(state.Sessions) == 0 {
		return removeStateFile(path)
	}

	state.LastUpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

func removeStateFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// find returns the sessions whose run id is in ids, or every session when ids is empty.
func (s *SessionState) find(ids []string) []Session {
	if len(ids) == 0 {
		return append([]Session(nil), s.Sessions...)
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []Session
	for _, session := range s.Sessions {
		if wanted[session.RunID] {
			out = append(out, session)
		}
	}
	return out
}

// remove drops the sessions with the given run ids.
func (s *SessionState) remove(ids map[string]bool) {
	kept := s.Sessions[:0]
	for _, session := range s.Sessions {
		if !ids[session.RunID] {
			kept = append(kept, session)
		}
	}
	s.Sessions = kept
}
