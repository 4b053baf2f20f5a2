package explore

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/executor"
	"github.com/ormasoftchile/axtest/pkg/oracle"
)

// Outcome classifies how an exploration run ended.
type Outcome string

const (
	// OutcomeExhausted means max_steps ran with no failure. A clean result.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeFailure means an oracle or invariant fired.
	OutcomeFailure Outcome = "failure"
	// OutcomeStuck means no template was a valid candidate.
	OutcomeStuck Outcome = "stuck"
	// OutcomeAborted means the harness itself failed or was canceled.
	OutcomeAborted Outcome = "aborted"
)

// StepRecord is one executed exploration step.
type StepRecord struct {
	Index    int            `json:"index"`
	Template string         `json:"template"`
	Action   action.Action  `json:"action"`
	Result   *action.Result `json:"result"`
}

// Report is the full outcome of one exploration run.
type Report struct {
	Seed    uint64          `json:"seed"`
	Outcome Outcome         `json:"outcome"`
	Steps   []*StepRecord   `json:"steps"`
	Finding *oracle.Finding `json:"finding,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

// Explorer drives seeded random exploration through the shared executor.
type Explorer struct {
	Space    *Space
	Policy   Policy
	Executor *executor.Executor
	Oracle   *oracle.Engine

	Seed     uint64
	MaxSteps int

	// Progress receives per-step lines. Nil silences it.
	Progress io.Writer

	rng *rand.Rand
}

// Run executes up to MaxSteps random actions. Determinism contract: the
// generator is seeded once and consumes exactly one draw per executed step,
// plus one extra draw whenever a destructive candidate is offered and
// declined. Nothing else reads it, so the same seed against the same
// starting UI state yields the same action sequence.
func (ex *Explorer) Run(ctx context.Context) (*Report, error) {
	report := &Report{Seed: ex.Seed}
	ex.rng = rand.New(rand.NewPCG(ex.Seed, 0))

	invs := make([]oracle.Invariant, len(ex.Space.Invariants))
	for i, d := range ex.Space.Invariants {
		invs[i] = oracle.Invariant{Name: d.Name, Expr: d.Expr}
	}

	for step := 0; step < ex.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			report.Outcome = OutcomeAborted
			report.Reason = fmt.Sprintf("canceled: %v", err)
			return report, err
		}

		els, windows, err := ex.observe(ctx)
		if err != nil {
			report.Outcome = OutcomeAborted
			report.Reason = fmt.Sprintf("observe state: %v", err)
			return report, fmt.Errorf("exploration step %d: %w", step, err)
		}

		tmpl, ok := ex.pick(els, windows)
		if !ok {
			report.Outcome = OutcomeStuck
			report.Reason = "no valid candidate actions"
			return report, nil
		}

		ex.progress("▶ step %d/%d: %s (%s)\n", step+1, ex.MaxSteps, tmpl.Name, tmpl.Action.Describe())
		res, err := ex.Executor.Execute(ctx, tmpl.Action)
		rec := &StepRecord{Index: step, Template: tmpl.Name, Action: tmpl.Action, Result: res}
		report.Steps = append(report.Steps, rec)
		if err != nil {
			report.Outcome = OutcomeAborted
			report.Reason = fmt.Sprintf("session log: %v", err)
			return report, err
		}
		if res.ErrorKind == action.KindInternal || res.ErrorKind == action.KindInterrupted {
			report.Outcome = OutcomeAborted
			report.Reason = res.Error
			return report, fmt.Errorf("exploration aborted at step %d: %s", step, res.Error)
		}

		f, err := ex.verify(ctx, invs)
		if err != nil {
			report.Outcome = OutcomeAborted
			report.Reason = fmt.Sprintf("verify state: %v", err)
			return report, fmt.Errorf("exploration step %d: %w", step, err)
		}
		if f != nil {
			ex.progress("✗ step %d: %s\n", step+1, f.Message)
			report.Outcome = OutcomeFailure
			report.Finding = f
			return report, nil
		}
	}

	report.Outcome = OutcomeExhausted
	return report, nil
}

// observe fetches the live state used for candidate filtering.
func (ex *Explorer) observe(ctx context.Context) ([]driver.Element, []driver.Window, error) {
	d := ex.Executor.Driver
	scope := driver.Scope{}
	if ex.Executor.Target != nil {
		scope.PID = ex.Executor.Target.PID
	}
	els, err := d.ListElements(ctx, scope)
	if err != nil {
		return nil, nil, fmt.Errorf("list elements: %w", err)
	}
	windows, err := d.ListWindows(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list windows: %w", err)
	}
	return els, windows, nil
}

// pick filters templates down to valid candidates and draws one by weight.
// A drawn destructive candidate is offered to the policy's confirmer; if
// declined it is discarded for this step and a fresh draw picks among the
// survivors.
func (ex *Explorer) pick(els []driver.Element, windows []driver.Window) (Template, bool) {
	env := oracle.ExprEnv(els, windows)
	var candidates []Template
	for _, t := range ex.Space.Templates {
		if ex.Policy.Destructive(t) && !ex.Policy.AllowDestructive {
			continue
		}
		if t.Precondition != "" {
			ok, err := oracle.EvalPredicate(t.Precondition, env)
			if err != nil || !ok {
				continue
			}
		}
		candidates = append(candidates, t)
	}

	for len(candidates) > 0 {
		i := ex.draw(candidates)
		t := candidates[i]
		if !ex.Policy.Destructive(t) {
			return t, true
		}
		if ex.Policy.Confirm != nil && ex.Policy.Confirm(t.Action) {
			return t, true
		}
		ex.progress("⊘ destructive candidate %s declined\n", t.Name)
		candidates = append(candidates[:i], candidates[i+1:]...)
	}
	return Template{}, false
}

// draw consumes exactly one generator value and maps it onto the cumulative
// weight of the candidates.
func (ex *Explorer) draw(candidates []Template) int {
	total := 0
	for _, t := range candidates {
		total += t.EffectiveWeight()
	}
	v := int(ex.rng.Uint64() % uint64(total))
	for i, t := range candidates {
		v -= t.EffectiveWeight()
		if v < 0 {
			return i
		}
	}
	return len(candidates) - 1
}

// verify runs the ambient oracles and the declared invariants after a step.
func (ex *Explorer) verify(ctx context.Context, invs []oracle.Invariant) (*oracle.Finding, error) {
	if ex.Oracle == nil {
		return nil, nil
	}
	if f := ex.Oracle.Check(ctx); f != nil {
		return f, nil
	}
	if len(invs) == 0 {
		return nil, nil
	}
	els, windows, err := ex.observe(ctx)
	if err != nil {
		return nil, err
	}
	return oracle.EvalInvariants(invs, els, windows), nil
}

func (ex *Explorer) progress(format string, args ...any) {
	if ex.Progress != nil {
		fmt.Fprintf(ex.Progress, format, args...)
	}
}
