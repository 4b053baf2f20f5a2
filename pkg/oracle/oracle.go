// Package oracle classifies observed UI state as failures. Checks run after
// every action in both scenario and exploration modes; the first oracle that
// fires wins and the run stops there. The engine only detects and snapshots;
// root-cause hypotheses are assembled later from the same snapshot.
package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/selector"
)

// Kind names a distinct failure class.
type Kind string

const (
	ProcessTerminated      Kind = "process_terminated"
	UnexpectedDialog       Kind = "unexpected_dialog"
	ExpectedElementMissing Kind = "expected_element_missing"
	Unresponsive           Kind = "unresponsive"
	AssertionMismatch      Kind = "assertion_mismatch"
	InvariantViolation     Kind = "invariant_violation"
)

// DefaultLivenessWindow bounds the freeze probe. A target that cannot
// enumerate its top-level elements within this window counts as frozen.
const DefaultLivenessWindow = 5 * time.Second

// errDialogPatterns are title substrings that mark a top-level window as an
// error dialog. Matched case-insensitively.
var errDialogPatterns = []string{
	"exception",
	"error",
	"fatal",
	"unhandled",
	"crash",
	"stopped working",
	"not responding",
}

// Finding is one fired oracle, paired with the state snapshot that triggered
// it.
type Finding struct {
	Kind     Kind      `json:"kind"`
	Message  string    `json:"message"`
	Expected string    `json:"expected,omitempty"`
	Actual   string    `json:"actual,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

// Snapshot is the observable state at the moment a finding fired.
type Snapshot struct {
	TakenAt  time.Time        `json:"taken_at"`
	Windows  []driver.Window  `json:"windows,omitempty"`
	Elements []driver.Element `json:"elements,omitempty"`
}

// Engine evaluates the oracle set against a live target.
type Engine struct {
	Driver driver.Driver
	PID    int32

	// Alive reports target process liveness. Checked first; every other
	// oracle assumes a live process.
	Alive func() bool

	LivenessWindow time.Duration

	// baseline holds the window handles present when the run started, so new
	// error dialogs can be told apart from ones the application always shows.
	baseline map[uintptr]bool
}

// NewEngine builds an engine for the given target.
func NewEngine(d driver.Driver, pid int32, alive func() bool) *Engine {
	return &Engine{
		Driver:         d,
		PID:            pid,
		Alive:          alive,
		LivenessWindow: DefaultLivenessWindow,
	}
}

// Baseline records the currently open windows. Windows present now never
// count as unexpected later, whatever their titles say.
func (e *Engine) Baseline(ctx context.Context) error {
	wins, err := e.Driver.ListWindows(ctx)
	if err != nil {
		return err
	}
	e.baseline = make(map[uintptr]bool, len(wins))
	for _, w := range wins {
		e.baseline[w.Handle] = true
	}
	return nil
}

// Check runs the ambient oracle set in fixed order and returns the first
// finding, or nil if everything holds. Order: process liveness, freeze
// probe, new error dialogs. Assertion and invariant checks are separate
// entry points because they need declared inputs.
func (e *Engine) Check(ctx context.Context) *Finding {
	if e.Alive != nil && !e.Alive() {
		return &Finding{
			Kind:     ProcessTerminated,
			Message:  "target process is no longer alive",
			Snapshot: &Snapshot{TakenAt: time.Now().UTC()},
		}
	}

	if f := e.checkResponsive(ctx); f != nil {
		return f
	}

	return e.checkDialogs(ctx)
}

// checkResponsive probes the target by enumerating its shallow element tree
// under the liveness window. A timeout is a freeze; a driver error is not
// (the driver process may have its own trouble, which the executor surfaces
// separately).
func (e *Engine) checkResponsive(ctx context.Context) *Finding {
	window := e.LivenessWindow
	if window <= 0 {
		window = DefaultLivenessWindow
	}
	probeCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	_, err := e.Driver.ListElements(probeCtx, driver.Scope{PID: e.PID, Depth: 1})
	if err == nil || ctx.Err() != nil {
		return nil
	}
	if probeCtx.Err() == context.DeadlineExceeded {
		return &Finding{
			Kind:     Unresponsive,
			Message:  "target did not answer a liveness probe within " + window.String(),
			Snapshot: &Snapshot{TakenAt: time.Now().UTC()},
		}
	}
	return nil
}

// checkDialogs looks for top-level windows that were not in the baseline and
// whose titles match an error-dialog pattern.
func (e *Engine) checkDialogs(ctx context.Context) *Finding {
	wins, err := e.Driver.ListWindows(ctx)
	if err != nil {
		return nil
	}
	for _, w := range wins {
		if e.baseline != nil && e.baseline[w.Handle] {
			continue
		}
		if pat := matchErrDialog(w.Title); pat != "" {
			return &Finding{
				Kind:    UnexpectedDialog,
				Message: fmt.Sprintf("new window %q matches error-dialog pattern %q", w.Title, pat),
				Actual:  w.Title,
				Snapshot: &Snapshot{
					TakenAt: time.Now().UTC(),
					Windows: wins,
				},
			}
		}
	}
	return nil
}

// CheckExpected verifies that every declared must-exist selector resolves
// uniquely. First miss wins.
func (e *Engine) CheckExpected(ctx context.Context, sels []selector.Selector) *Finding {
	if len(sels) == 0 {
		return nil
	}
	els, err := e.Driver.ListElements(ctx, driver.Scope{PID: e.PID})
	if err != nil {
		return nil
	}
	for _, s := range sels {
		if _, outcome := selector.Resolve(s, els); outcome != selector.Unique {
			return &Finding{
				Kind:     ExpectedElementMissing,
				Message:  "declared element " + s.Describe() + " not present",
				Expected: s.Describe(),
				Snapshot: &Snapshot{TakenAt: time.Now().UTC(), Elements: els},
			}
		}
	}
	return nil
}

func matchErrDialog(title string) string {
	lower := strings.ToLower(title)
	for _, pat := range errDialogPatterns {
		if strings.Contains(lower, pat) {
			return pat
		}
	}
	return ""
}
