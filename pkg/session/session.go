// Package session manages per-run identity, artifact directories, and the
// append-only action log that replay and minimization consume.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/axtest/pkg/action"
)

// Mode identifies what kind of run produced a session.
type Mode string

const (
	ModeScenario Mode = "scenario"
	ModeExplore  Mode = "explore"
	ModeReplay   Mode = "replay"
	ModeMinimize Mode = "minimize"
)

// Session is one harness run: a unique ID, an artifact directory, and an
// open action log.
type Session struct {
	ID        string
	Mode      Mode
	Dir       string
	Seed      uint64
	StartedAt time.Time

	Log *LogWriter
}

// New creates a session directory under root and opens its action log.
// Layout mirrors what the reporting commands expect:
//
//	<root>/<session-id>/actions.jsonl
//	<root>/<session-id>/screenshots/
//	<root>/<session-id>/run.yaml          (written on Finish)
func New(root string, mode Mode) (*Session, error) {
	id := fmt.Sprintf("%s-%s", mode, uuid.NewString()[:8])
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(filepath.Join(dir, "screenshots"), 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	log, err := NewLogWriter(filepath.Join(dir, "actions.jsonl"))
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		Mode:      mode,
		Dir:       dir,
		StartedAt: time.Now().UTC(),
		Log:       log,
	}, nil
}

// ScreenshotPath returns a path under the session's screenshots directory.
func (s *Session) ScreenshotPath(name string) string {
	return filepath.Join(s.Dir, "screenshots", name)
}

// LogPath returns the path of the session's action log.
func (s *Session) LogPath() string {
	return filepath.Join(s.Dir, "actions.jsonl")
}

// Finish closes the action log and writes the run manifest.
func (s *Session) Finish(m *Manifest) error {
	if s.Log != nil {
		if err := s.Log.Close(); err != nil {
			return err
		}
		s.Log = nil
	}
	m.SessionID = s.ID
	m.Mode = string(s.Mode)
	m.Seed = s.Seed
	m.StartedAt = s.StartedAt.Format(time.RFC3339)
	m.EndedAt = time.Now().UTC().Format(time.RFC3339)
	return WriteManifest(filepath.Join(s.Dir, "run.yaml"), m)
}

// Record is one entry in the action log. Every executed action produces
// exactly one record, appended before the next action starts.
type Record struct {
	Seq       int              `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	SessionID string           `json:"session_id"`
	Action    action.Action    `json:"action"`
	Result    *action.Result   `json:"result"`
	Findings  []FindingSummary `json:"findings,omitempty"`
}

// FindingSummary is the log-side view of an oracle finding. The full finding
// lives in the ticket; the log keeps enough to locate it during replay.
type FindingSummary struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
