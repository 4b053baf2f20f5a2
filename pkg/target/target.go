// Package target resolves an abstract target description (PID, process
// name, executable to launch, or window title pattern) into one concrete
// running process/window. Resolution is deliberately uncached: targets can
// die and relaunch across a session, and hiding that behind a cache would
// mask the crash oracle.
package target

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Sentinel resolution errors. Callers branch with errors.Is.
var (
	ErrNotFound  = errors.New("target not found")
	ErrAmbiguous = errors.New("target ambiguous")
	ErrTimeout   = errors.New("target resolution timed out")
)

// Spec describes the desired target. Exactly one resolution form is used,
// in priority order: PID, Process, Exe (launch), TitleRe.
type Spec struct {
	PID     int32    `json:"pid,omitempty"      yaml:"pid,omitempty"`
	Process string   `json:"process,omitempty"  yaml:"process,omitempty"`
	Exe     string   `json:"exe,omitempty"      yaml:"exe,omitempty"`
	Args    []string `json:"args,omitempty"     yaml:"args,omitempty"`
	Cwd     string   `json:"cwd,omitempty"      yaml:"cwd,omitempty"`
	TitleRe string   `json:"title_re,omitempty" yaml:"title_re,omitempty"`
}

// IsZero reports whether no resolution form is set.
func (s Spec) IsZero() bool {
	return s.PID == 0 && s.Process == "" && s.Exe == "" && s.TitleRe == ""
}

// Resolved is a live handle to one running application. LaunchedByUs gates
// destructive close: a target we merely attached to is never killed.
type Resolved struct {
	ID           string  `json:"id"`
	PID          int32   `json:"pid"`
	ProcessName  string  `json:"process_name"`
	WindowHandle uintptr `json:"window_handle,omitempty"`
	LaunchedByUs bool    `json:"launched_by_us"`
}

func (r *Resolved) String() string {
	return fmt.Sprintf("target %s (pid=%d, %s)", r.ID, r.PID, r.ProcessName)
}

func newID() string {
	return "target-" + uuid.NewString()[:8]
}

// ProcInfo is one running process as seen by the process API.
type ProcInfo struct {
	PID  int32
	Name string
}

// ProcessAPI abstracts OS process enumeration so resolution and liveness
// checks are testable without real processes.
type ProcessAPI interface {
	PidExists(pid int32) (bool, error)
	List() ([]ProcInfo, error)
	Kill(pid int32) error
}

// Launcher starts a new process and reports its PID.
type Launcher interface {
	Start(exe string, args []string, cwd string) (int32, error)
}

// Journal persists the PIDs this harness launched, so close operations can
// verify they only ever terminate processes we started. Survives across
// separate command invocations.
type Journal struct {
	Path string
}

type journalEntry struct {
	PID int32   `json:"pid"`
	Exe string  `json:"exe"`
	TS  float64 `json:"ts"`
}

func (j *Journal) load() []journalEntry {
	data, err := os.ReadFile(j.Path)
	if err != nil {
		return nil
	}
	var entries []journalEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

func (j *Journal) save(entries []journalEntry) error {
	if err := os.MkdirAll(filepath.Dir(j.Path), 0755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}
	if err := os.WriteFile(j.Path, data, 0644); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Record adds a launched PID.
func (j *Journal) Record(pid int32, exe string) error {
	entries := j.load()
	entries = append(entries, journalEntry{PID: pid, Exe: exe, TS: float64(time.Now().UnixMilli()) / 1000})
	return j.save(entries)
}

// Contains reports whether pid was launched by this harness.
func (j *Journal) Contains(pid int32) bool {
	for _, e := range j.load() {
		if e.PID == pid {
			return true
		}
	}
	return false
}

// Remove drops a PID after it was closed.
func (j *Journal) Remove(pid int32) error {
	entries := j.load()
	kept := entries[:0]
	for _, e := range entries {
		if e.PID != pid {
			kept = append(kept, e)
		}
	}
	return j.save(kept)
}
