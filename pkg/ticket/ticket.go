// Package ticket turns a detected failure into a structured, persisted
// evidence bundle: a human-readable report, a machine-readable record, the
// action-log subset that reproduces it, and the evidence files it references.
package ticket

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/axtest/pkg/evidence"
	"github.com/ormasoftchile/axtest/pkg/oracle"
	"github.com/ormasoftchile/axtest/pkg/session"
)

// Status is the triage state. A ticket starts pending; triage moves it to
// fix or wontfix exactly once (repeating the same decision is a no-op).
type Status string

const (
	StatusPending Status = "pending"
	StatusFix     Status = "fix"
	StatusWontfix Status = "wontfix"
)

// Ticket is one detected failure with everything needed to reproduce and
// judge it. Immutable after creation except for the triage transition.
type Ticket struct {
	ID        string    `json:"id"         yaml:"id"`
	SessionID string    `json:"session_id" yaml:"session_id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	Kind    oracle.Kind `json:"kind"    yaml:"kind"`
	Title   string      `json:"title"   yaml:"title"`
	Summary string      `json:"summary" yaml:"summary"`

	ReproSteps []string `json:"repro_steps" yaml:"repro_steps"`
	Actual     string   `json:"actual"      yaml:"actual"`
	Expected   string   `json:"expected"    yaml:"expected"`

	Environment map[string]string `json:"environment" yaml:"environment"`

	EvidenceRefs []*evidence.Ref `json:"evidence_refs,omitempty" yaml:"evidence_refs,omitempty"`

	// RootCauseHypothesis is advisory only and always phrased as a
	// possibility, never a conclusion.
	RootCauseHypothesis string `json:"root_cause_hypothesis,omitempty" yaml:"root_cause_hypothesis,omitempty"`

	Status Status `json:"status" yaml:"status"`
}

// Input bundles what assembly needs from the failed run.
type Input struct {
	Finding  *oracle.Finding
	Records  []*session.Record // log up to and including the failure point
	Session  *session.Manifest
	Evidence []*evidence.Ref
}

// Assemble builds a ticket from a failure context. Repro steps come verbatim
// from the action log; nothing is paraphrased.
func Assemble(in Input) *Ticket {
	t := &Ticket{
		ID:        "ticket-" + uuid.NewString()[:8],
		CreatedAt: time.Now().UTC(),
		Kind:      in.Finding.Kind,
		Status:    StatusPending,
		Environment: map[string]string{
			"os":   runtime.GOOS,
			"arch": runtime.GOARCH,
		},
		EvidenceRefs: in.Evidence,
	}

	if in.Session != nil {
		t.SessionID = in.Session.SessionID
		t.Environment["mode"] = in.Session.Mode
		if in.Session.Target != "" {
			t.Environment["target"] = in.Session.Target
		}
		if in.Session.Seed != 0 {
			t.Environment["seed"] = fmt.Sprintf("%d", in.Session.Seed)
		}
	}

	t.Title = fmt.Sprintf("[%s] %s", in.Finding.Kind, truncate(in.Finding.Message, 80))
	t.Summary = in.Finding.Message
	t.Actual = in.Finding.Actual
	if t.Actual == "" {
		t.Actual = in.Finding.Message
	}
	t.Expected = in.Finding.Expected
	if t.Expected == "" {
		t.Expected = "no crash, freeze, or error dialog"
	}

	for _, rec := range in.Records {
		t.ReproSteps = append(t.ReproSteps, fmt.Sprintf("%d. %s", rec.Seq+1, rec.Action.Describe()))
	}

	t.RootCauseHypothesis = hypothesize(in.Finding, in.Records)
	return t
}

// hypothesize builds an advisory root-cause note from the last few actions
// before the failure. It must read as a lead, not a verdict.
func hypothesize(f *oracle.Finding, records []*session.Record) string {
	if len(records) == 0 {
		return fmt.Sprintf("No actions were executed before the %s finding; the failure may be inherent to the application's startup state.", f.Kind)
	}

	last := records[len(records)-1]
	var b strings.Builder
	fmt.Fprintf(&b, "The failure surfaced immediately after %q, which suggests that action may be involved.", last.Action.Describe())

	// A trailing run of failed actions before the finding is worth calling
	// out: the application may have stopped responding earlier than the
	// oracle noticed.
	failedTail := 0
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Result == nil || records[i].Result.Status == "failure" {
			failedTail++
		} else {
			break
		}
	}
	if failedTail > 1 {
		fmt.Fprintf(&b, " The preceding %d actions also failed, so the underlying problem may have started earlier in the sequence.", failedTail-1)
	}

	if f.Snapshot != nil && len(f.Snapshot.Windows) > 0 {
		fmt.Fprintf(&b, " %d window(s) were open at detection time.", len(f.Snapshot.Windows))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
