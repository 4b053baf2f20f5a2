package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/selector"
)

func boolp(b bool) *bool { return &b }
func intp(n int) *int    { return &n }

func baseTree() []driver.Element {
	return []driver.Element{
		{AutomationID: "MainButton", Name: "OK", ControlType: "Button", Enabled: true, Visible: true},
		{AutomationID: "StatusLabel", Name: "Status", ControlType: "Text", Value: "Ready", Visible: true},
		{AutomationID: "OptionCheck", Name: "Option", ControlType: "CheckBox", Enabled: true, Selected: true, Visible: true},
		{Name: "Cancel", ControlType: "Button", Enabled: false, Visible: true},
	}
}

func TestCheckProcessTerminatedFirst(t *testing.T) {
	d := driver.NewFakeDriver()
	e := NewEngine(d, 100, func() bool { return false })

	f := e.Check(context.Background())
	if f == nil || f.Kind != ProcessTerminated {
		t.Fatalf("finding = %+v, want ProcessTerminated", f)
	}
}

func TestCheckUnexpectedDialog(t *testing.T) {
	d := driver.NewFakeDriver()
	d.Windows = []driver.Window{
		{Handle: 1, PID: 100, Title: "My App"},
	}
	e := NewEngine(d, 100, func() bool { return true })
	if err := e.Baseline(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Nothing new yet.
	if f := e.Check(context.Background()); f != nil {
		t.Fatalf("unexpected finding: %+v", f)
	}

	d.Windows = append(d.Windows, driver.Window{Handle: 2, PID: 100, Title: "Unhandled Exception"})
	f := e.Check(context.Background())
	if f == nil || f.Kind != UnexpectedDialog {
		t.Fatalf("finding = %+v, want UnexpectedDialog", f)
	}
	if f.Actual != "Unhandled Exception" {
		t.Fatalf("actual = %q", f.Actual)
	}
	if f.Snapshot == nil || len(f.Snapshot.Windows) != 2 {
		t.Fatal("finding missing window snapshot")
	}
}

func TestBaselineWindowNeverFlagged(t *testing.T) {
	d := driver.NewFakeDriver()
	d.Windows = []driver.Window{
		{Handle: 7, PID: 100, Title: "Error Console"},
	}
	e := NewEngine(d, 100, func() bool { return true })
	if err := e.Baseline(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f := e.Check(context.Background()); f != nil {
		t.Fatalf("baseline window flagged: %+v", f)
	}
}

func TestCheckUnresponsive(t *testing.T) {
	d := driver.NewFakeDriver()
	d.ListDelay = 200 * time.Millisecond
	e := NewEngine(d, 100, func() bool { return true })
	e.LivenessWindow = 20 * time.Millisecond

	f := e.Check(context.Background())
	if f == nil || f.Kind != Unresponsive {
		t.Fatalf("finding = %+v, want Unresponsive", f)
	}
}

func TestCheckExpected(t *testing.T) {
	d := driver.NewFakeDriver()
	d.SetElements(100, baseTree())
	e := NewEngine(d, 100, func() bool { return true })

	present := []selector.Selector{{AutomationID: "MainButton"}}
	if f := e.CheckExpected(context.Background(), present); f != nil {
		t.Fatalf("unexpected finding: %+v", f)
	}

	missing := []selector.Selector{{AutomationID: "MainButton"}, {AutomationID: "NoSuch"}}
	f := e.CheckExpected(context.Background(), missing)
	if f == nil || f.Kind != ExpectedElementMissing {
		t.Fatalf("finding = %+v, want ExpectedElementMissing", f)
	}
}

func TestEvaluateAssertions(t *testing.T) {
	els := baseTree()
	tests := []struct {
		name   string
		a      Assertion
		passed bool
	}{
		{"exists true", Assertion{Selector: selector.Selector{AutomationID: "MainButton"}, Exists: boolp(true)}, true},
		{"exists false on absent", Assertion{Selector: selector.Selector{AutomationID: "Ghost"}, Exists: boolp(false)}, true},
		{"exists true on absent", Assertion{Selector: selector.Selector{AutomationID: "Ghost"}, Exists: boolp(true)}, false},
		{"text_equals match", Assertion{Selector: selector.Selector{AutomationID: "StatusLabel"}, TextEquals: "Ready"}, true},
		{"text_equals mismatch", Assertion{Selector: selector.Selector{AutomationID: "StatusLabel"}, TextEquals: "Clicked"}, false},
		{"text_contains", Assertion{Selector: selector.Selector{AutomationID: "StatusLabel"}, TextContains: "ead"}, true},
		{"value_equals", Assertion{Selector: selector.Selector{AutomationID: "StatusLabel"}, ValueEquals: "Ready"}, true},
		{"matches", Assertion{Selector: selector.Selector{AutomationID: "StatusLabel"}, Matches: "^Rea"}, true},
		{"matches bad pattern", Assertion{Selector: selector.Selector{AutomationID: "StatusLabel"}, Matches: "("}, false},
		{"enabled", Assertion{Selector: selector.Selector{AutomationID: "MainButton"}, Enabled: boolp(true)}, true},
		{"disabled", Assertion{Selector: selector.Selector{Name: "Cancel"}, Enabled: boolp(false)}, true},
		{"selected", Assertion{Selector: selector.Selector{AutomationID: "OptionCheck"}, Selected: boolp(true)}, true},
		{"count ok", Assertion{Selector: selector.Selector{ControlType: "Button"}, CountGreaterEqual: intp(2)}, true},
		{"count short", Assertion{Selector: selector.Selector{ControlType: "Button"}, CountGreaterEqual: intp(3)}, false},
		{"predicate on absent element", Assertion{Selector: selector.Selector{AutomationID: "Ghost"}, TextEquals: "x"}, false},
		{"no predicate", Assertion{Selector: selector.Selector{AutomationID: "MainButton"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Evaluate(tt.a, els)
			if r.Passed != tt.passed {
				t.Fatalf("passed = %v, want %v (%s)", r.Passed, tt.passed, r.Message)
			}
		})
	}
}

func TestAssertionResultCarriesActual(t *testing.T) {
	els := baseTree()
	r := Evaluate(Assertion{Selector: selector.Selector{AutomationID: "StatusLabel"}, TextEquals: "Clicked"}, els)
	if r.Passed {
		t.Fatal("expected failure")
	}
	if r.Actual != "Ready" || r.Expected != "Clicked" {
		t.Fatalf("actual/expected = %q/%q", r.Actual, r.Expected)
	}
	f := r.Finding(els)
	if f == nil || f.Kind != AssertionMismatch {
		t.Fatalf("finding = %+v", f)
	}
}

func TestEvaluateAllShortCircuits(t *testing.T) {
	els := baseTree()
	asserts := []Assertion{
		{Selector: selector.Selector{AutomationID: "StatusLabel"}, TextEquals: "Wrong"},
		{Selector: selector.Selector{AutomationID: "Ghost"}, Exists: boolp(true)},
	}
	f := EvaluateAll(asserts, els)
	if f == nil || f.Kind != AssertionMismatch {
		t.Fatalf("finding = %+v", f)
	}
	if f.Expected != "Wrong" {
		t.Fatalf("first failure not returned: %+v", f)
	}
}

func TestInvariants(t *testing.T) {
	els := baseTree()
	wins := []driver.Window{{Handle: 1, Title: "My App"}}

	holds := []Invariant{
		{Name: "main button present", Expr: `exists("MainButton")`},
		{Name: "status readable", Expr: `text("StatusLabel") == "Ready"`},
		{Name: "one window", Expr: `windows == 1`},
		{Name: "buttons", Expr: `count("Button") >= 2`},
		{Name: "option on", Expr: `selected("OptionCheck") && enabled("OptionCheck")`},
	}
	if f := EvalInvariants(holds, els, wins); f != nil {
		t.Fatalf("unexpected violation: %+v", f)
	}

	broken := append(holds, Invariant{Name: "cancel usable", Expr: `enabled("Cancel")`})
	f := EvalInvariants(broken, els, wins)
	if f == nil || f.Kind != InvariantViolation {
		t.Fatalf("finding = %+v, want InvariantViolation", f)
	}
	if f.Expected != `enabled("Cancel")` {
		t.Fatalf("expected expr not carried: %+v", f)
	}
}

func TestInvariantCompileErrorIsViolation(t *testing.T) {
	f := EvalInvariants([]Invariant{{Name: "bad", Expr: `text(`}}, baseTree(), nil)
	if f == nil || f.Kind != InvariantViolation {
		t.Fatalf("finding = %+v, want InvariantViolation", f)
	}
}
