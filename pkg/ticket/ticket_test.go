package ticket

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/evidence"
	"github.com/ormasoftchile/axtest/pkg/oracle"
	"github.com/ormasoftchile/axtest/pkg/selector"
	"github.com/ormasoftchile/axtest/pkg/session"
)

func fixtureInput(t *testing.T) Input {
	t.Helper()
	records := []*session.Record{
		{
			Seq:    0,
			Action: action.Action{Tool: action.Click, Args: action.Args{Selector: &selector.Selector{AutomationID: "MainButton"}}},
			Result: action.Success(),
		},
		{
			Seq:    1,
			Action: action.Action{Tool: action.TypeText, Args: action.Args{Selector: &selector.Selector{AutomationID: "NameBox"}, Text: "abc"}},
			Result: action.Success(),
		},
	}
	return Input{
		Finding: &oracle.Finding{
			Kind:     oracle.AssertionMismatch,
			Message:  `text_equals: got "Ready", want "Clicked"`,
			Expected: "Clicked",
			Actual:   "Ready",
		},
		Records: records,
		Session: &session.Manifest{SessionID: "scenario-abc", Mode: "scenario", Seed: 0},
	}
}

func TestAssemble(t *testing.T) {
	tk := Assemble(fixtureInput(t))

	if tk.Status != StatusPending {
		t.Fatalf("status = %q", tk.Status)
	}
	if tk.Kind != oracle.AssertionMismatch {
		t.Fatalf("kind = %q", tk.Kind)
	}
	if tk.Actual != "Ready" || tk.Expected != "Clicked" {
		t.Fatalf("actual/expected = %q/%q", tk.Actual, tk.Expected)
	}
	if len(tk.ReproSteps) != 2 {
		t.Fatalf("repro steps: %v", tk.ReproSteps)
	}
	if !strings.Contains(tk.ReproSteps[0], "click") || !strings.Contains(tk.ReproSteps[0], "MainButton") {
		t.Fatalf("step 0 not verbatim from log: %q", tk.ReproSteps[0])
	}
	if tk.SessionID != "scenario-abc" {
		t.Fatalf("session = %q", tk.SessionID)
	}
}

func TestHypothesisIsNeverCertain(t *testing.T) {
	tk := Assemble(fixtureInput(t))
	h := strings.ToLower(tk.RootCauseHypothesis)
	if h == "" {
		t.Fatal("no hypothesis")
	}
	if !strings.Contains(h, "may") && !strings.Contains(h, "suggest") {
		t.Fatalf("hypothesis reads as a verdict: %q", tk.RootCauseHypothesis)
	}
	for _, forbidden := range []string{"definitely", "certainly", "proves"} {
		if strings.Contains(h, forbidden) {
			t.Fatalf("hypothesis overclaims: %q", tk.RootCauseHypothesis)
		}
	}
}

func TestExpectedDefaultsToBaseline(t *testing.T) {
	in := fixtureInput(t)
	in.Finding = &oracle.Finding{Kind: oracle.ProcessTerminated, Message: "target process is no longer alive"}
	tk := Assemble(in)
	if !strings.Contains(tk.Expected, "no crash") {
		t.Fatalf("expected = %q", tk.Expected)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := &Store{Root: t.TempDir()}
	in := fixtureInput(t)

	shot := filepath.Join(t.TempDir(), "shot.png")
	if err := os.WriteFile(shot, []byte("pixels"), 0644); err != nil {
		t.Fatal(err)
	}
	ref, err := evidence.NewRef("screenshot", shot)
	if err != nil {
		t.Fatal(err)
	}
	in.Evidence = []*evidence.Ref{ref}

	tk := Assemble(in)
	dir, err := store.Save(tk, in.Records)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"ticket.md", "ticket.json", "repro.jsonl"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s missing: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "evidence", "shot.png")); err != nil {
		t.Fatalf("evidence not copied: %v", err)
	}

	loaded, _, err := store.Load(tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Title != tk.Title || loaded.Status != StatusPending {
		t.Fatalf("loaded: %+v", loaded)
	}

	md, err := os.ReadFile(filepath.Join(dir, "ticket.md"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# [", "## Reproduction Steps", "## Expected", "## Actual", "Root Cause Hypothesis"} {
		if !strings.Contains(string(md), want) {
			t.Fatalf("ticket.md missing %q", want)
		}
	}
}

func TestTriage(t *testing.T) {
	store := &Store{Root: t.TempDir()}
	tk := Assemble(fixtureInput(t))
	if _, err := store.Save(tk, nil); err != nil {
		t.Fatal(err)
	}

	if err := store.Triage(tk.ID, StatusFix); err != nil {
		t.Fatal(err)
	}

	loaded, dir, err := store.Load(tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != StatusFix {
		t.Fatalf("status = %q", loaded.Status)
	}
	if !strings.Contains(dir, string(os.PathSeparator)+"fix"+string(os.PathSeparator)) {
		t.Fatalf("ticket not relocated: %s", dir)
	}
	if _, err := os.Stat(filepath.Join(store.Root, "pending", tk.ID)); !os.IsNotExist(err) {
		t.Fatal("pending copy still present")
	}

	// Idempotent: same decision again is a no-op.
	if err := store.Triage(tk.ID, StatusFix); err != nil {
		t.Fatalf("re-triage to same decision: %v", err)
	}

	// Changing the decision is an error.
	if err := store.Triage(tk.ID, StatusWontfix); err == nil {
		t.Fatal("decision change accepted")
	}
}

func TestTriageRejectsInvalidDecision(t *testing.T) {
	store := &Store{Root: t.TempDir()}
	if err := store.Triage("ticket-x", StatusPending); err == nil {
		t.Fatal("pending accepted as a triage decision")
	}
}

func TestList(t *testing.T) {
	store := &Store{Root: t.TempDir()}
	tk := Assemble(fixtureInput(t))
	if _, err := store.Save(tk, nil); err != nil {
		t.Fatal(err)
	}

	pending, err := store.List(StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0] != tk.ID {
		t.Fatalf("pending = %v", pending)
	}
	fixed, err := store.List(StatusFix)
	if err != nil {
		t.Fatal(err)
	}
	if len(fixed) != 0 {
		t.Fatalf("fix = %v", fixed)
	}
}
