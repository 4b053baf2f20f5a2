package scenario

import (
	"context"
	"fmt"
	"io"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/executor"
	"github.com/ormasoftchile/axtest/pkg/oracle"
)

// State is the engine lifecycle state.
type State string

const (
	Pending State = "pending"
	Running State = "running"
	Passed  State = "passed"
	Failed  State = "failed"
	Aborted State = "aborted"
)

// StepOutcome records what happened to one step.
type StepOutcome struct {
	Index   int             `json:"index"`
	ID      string          `json:"id"`
	Result  *action.Result  `json:"result,omitempty"`
	Finding *oracle.Finding `json:"finding,omitempty"`
}

// Report is the complete outcome of one scenario run. FailedStep is -1 when
// every step passed.
type Report struct {
	Scenario   string          `json:"scenario"`
	State      State           `json:"state"`
	Steps      []*StepOutcome  `json:"steps"`
	Finding    *oracle.Finding `json:"finding,omitempty"`
	FailedStep int             `json:"failed_step"`
	Reason     string          `json:"reason,omitempty"`
}

// Engine executes one scenario through the shared executor and oracle. Steps
// run strictly in order and the first divergence stops the run: later steps
// would only smear the failure point the ticket needs to pin down.
type Engine struct {
	Scenario *Scenario
	Executor *executor.Executor
	Oracle   *oracle.Engine

	// Progress receives human-readable step lines. Nil silences it.
	Progress io.Writer

	state State
}

// NewEngine builds an engine in Pending state.
func NewEngine(sc *Scenario, x *executor.Executor, orc *oracle.Engine) *Engine {
	return &Engine{Scenario: sc, Executor: x, Oracle: orc, state: Pending}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Run executes all steps. The returned error is non-nil only for Aborted
// runs; Failed is a successful detection, reported through the Report.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		Scenario:   e.Scenario.Meta.Name,
		State:      Running,
		FailedStep: -1,
	}
	e.state = Running

	for i, step := range e.Scenario.Steps {
		// Cancellation is checked between steps, never mid-action.
		if err := ctx.Err(); err != nil {
			return e.abort(report, i, fmt.Sprintf("canceled: %v", err))
		}

		e.progress("▶ step %d/%d: %s\n", i+1, len(e.Scenario.Steps), step.ID)
		outcome := &StepOutcome{Index: i, ID: step.ID}
		report.Steps = append(report.Steps, outcome)

		res, err := e.Executor.Execute(ctx, step.Action)
		outcome.Result = res
		if err != nil {
			return e.abort(report, i, fmt.Sprintf("session log: %v", err))
		}
		if res.Status != action.StatusSuccess {
			switch res.ErrorKind {
			case action.KindInternal:
				return e.abort(report, i, res.Error)
			case action.KindInterrupted:
				return e.abort(report, i, "interrupted: "+res.Error)
			}
			e.progress("✗ step %s failed: %s\n", step.ID, res.Error)
			return e.fail(report, i, stepFailureFinding(step, res)), nil
		}

		if f := e.checkStep(ctx, step); f != nil {
			outcome.Finding = f
			e.progress("✗ step %s: %s\n", step.ID, f.Message)
			return e.fail(report, i, f), nil
		}
		e.progress("✓ step %s\n", step.ID)
	}

	e.state = Passed
	report.State = Passed
	return report, nil
}

// checkStep runs the ambient oracles, the step's must-exist selectors, and
// its expect clauses, returning the first finding.
func (e *Engine) checkStep(ctx context.Context, step Step) *oracle.Finding {
	if e.Oracle == nil {
		return nil
	}
	if f := e.Oracle.Check(ctx); f != nil {
		return f
	}
	if f := e.Oracle.CheckExpected(ctx, step.MustExist); f != nil {
		return f
	}
	if len(step.Expect) == 0 {
		return nil
	}
	els, err := e.Oracle.Driver.ListElements(ctx, driver.Scope{PID: e.Oracle.PID})
	if err != nil {
		// The ambient check just saw a live, responsive target; treat a
		// failed enumeration here as the elements being unobservable.
		return &oracle.Finding{
			Kind:    oracle.ExpectedElementMissing,
			Message: fmt.Sprintf("cannot enumerate elements for expectations: %v", err),
		}
	}
	return oracle.EvaluateAll(step.Expect, els)
}

func (e *Engine) fail(report *Report, step int, f *oracle.Finding) *Report {
	e.state = Failed
	report.State = Failed
	report.FailedStep = step
	report.Finding = f
	return report
}

func (e *Engine) abort(report *Report, step int, reason string) (*Report, error) {
	e.state = Aborted
	report.State = Aborted
	report.FailedStep = step
	report.Reason = reason
	e.progress("■ aborted at step %d: %s\n", step+1, reason)
	return report, fmt.Errorf("scenario %q aborted: %s", e.Scenario.Meta.Name, reason)
}

func (e *Engine) progress(format string, args ...any) {
	if e.Progress != nil {
		fmt.Fprintf(e.Progress, format, args...)
	}
}

// stepFailureFinding wraps a failed action result as a finding so tickets
// for failed steps and fired oracles share one shape. An element a step
// needs being absent is the missing-element oracle by definition.
func stepFailureFinding(step Step, res *action.Result) *oracle.Finding {
	kind := oracle.ExpectedElementMissing
	if res.ErrorKind != action.KindElementNotFound {
		kind = oracle.AssertionMismatch
	}
	expected := step.Action.Describe() + " to succeed"
	return &oracle.Finding{
		Kind:     kind,
		Message:  fmt.Sprintf("step %q: %s", step.ID, res.Error),
		Expected: expected,
		Actual:   res.Error,
	}
}
