package ticket

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ormasoftchile/axtest/pkg/evidence"
	"github.com/ormasoftchile/axtest/pkg/session"
)

// Store persists tickets under a root directory, one directory per ticket,
// grouped by triage status:
//
//	<root>/pending/<ticket-id>/ticket.md
//	<root>/pending/<ticket-id>/ticket.json
//	<root>/pending/<ticket-id>/repro.jsonl
//	<root>/pending/<ticket-id>/evidence/...
//
// Triage relocates the whole directory to <root>/fix/ or <root>/wontfix/.
type Store struct {
	Root string
}

// Save writes the ticket bundle. Evidence files are copied into the bundle
// so the ticket stays complete when the session directory is cleaned up.
func (s *Store) Save(t *Ticket, records []*session.Record) (string, error) {
	dir := filepath.Join(s.Root, string(t.Status), t.ID)
	if err := os.MkdirAll(filepath.Join(dir, "evidence"), 0755); err != nil {
		return "", fmt.Errorf("create ticket dir: %w", err)
	}

	var kept []*evidence.Ref
	for _, ref := range t.EvidenceRefs {
		copied, err := ref.CopyInto(filepath.Join(dir, "evidence"))
		if err != nil {
			// Evidence is best effort; a missing screenshot must not lose
			// the ticket itself.
			continue
		}
		kept = append(kept, copied)
	}
	t.EvidenceRefs = kept

	if err := s.writeRepro(filepath.Join(dir, "repro.jsonl"), records); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal ticket: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ticket.json"), data, 0644); err != nil {
		return "", fmt.Errorf("write ticket.json: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "ticket.md"), []byte(RenderMarkdown(t)), 0644); err != nil {
		return "", fmt.Errorf("write ticket.md: %w", err)
	}
	return dir, nil
}

func (s *Store) writeRepro(path string, records []*session.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create repro log: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return fmt.Errorf("encode repro record: %w", err)
		}
	}
	return f.Close()
}

// Load reads a ticket by ID, searching all status directories.
func (s *Store) Load(id string) (*Ticket, string, error) {
	for _, st := range []Status{StatusPending, StatusFix, StatusWontfix} {
		dir := filepath.Join(s.Root, string(st), id)
		data, err := os.ReadFile(filepath.Join(dir, "ticket.json"))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("read ticket: %w", err)
		}
		var t Ticket
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, "", fmt.Errorf("parse ticket %s: %w", id, err)
		}
		return &t, dir, nil
	}
	return nil, "", fmt.Errorf("ticket %s not found under %s", id, s.Root)
}

// List returns the IDs of all tickets with the given status.
func (s *Store) List(status Status) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.Root, string(status)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Triage applies the pending → fix|wontfix transition and relocates the
// ticket directory. Re-triaging to the same decision is a no-op; changing a
// decision is an error.
func (s *Store) Triage(id string, decision Status) error {
	if decision != StatusFix && decision != StatusWontfix {
		return fmt.Errorf("invalid triage decision %q", decision)
	}
	t, dir, err := s.Load(id)
	if err != nil {
		return err
	}
	if t.Status == decision {
		return nil
	}
	if t.Status != StatusPending {
		return fmt.Errorf("ticket %s already triaged to %s", id, t.Status)
	}

	t.Status = decision
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ticket: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ticket.json"), data, 0644); err != nil {
		return fmt.Errorf("update ticket.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ticket.md"), []byte(RenderMarkdown(t)), 0644); err != nil {
		return fmt.Errorf("update ticket.md: %w", err)
	}

	dst := filepath.Join(s.Root, string(decision), id)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create triage dir: %w", err)
	}
	if err := os.Rename(dir, dst); err != nil {
		return fmt.Errorf("relocate ticket: %w", err)
	}
	return nil
}
