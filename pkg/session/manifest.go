package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest records the complete metadata for a harness run. Written as
// run.yaml when the session finishes, whatever the outcome.
type Manifest struct {
	SessionID string         `yaml:"session_id"          json:"session_id"`
	Mode      string         `yaml:"mode"                json:"mode"`
	Seed      uint64         `yaml:"seed,omitempty"      json:"seed,omitempty"`
	Scenario  string         `yaml:"scenario,omitempty"  json:"scenario,omitempty"`
	Target    string         `yaml:"target,omitempty"    json:"target,omitempty"`
	StartedAt string         `yaml:"started_at"          json:"started_at"`
	EndedAt   string         `yaml:"ended_at"            json:"ended_at"`
	Outcome   string         `yaml:"outcome"             json:"outcome"`
	Actions   map[string]int `yaml:"actions,omitempty"   json:"actions,omitempty"`
	Findings  int            `yaml:"findings"            json:"findings"`
	Tickets   []string       `yaml:"tickets,omitempty"   json:"tickets,omitempty"`
}

// WriteManifest writes a manifest to path as YAML.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a run.yaml manifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
