// Package replay re-executes a persisted action log against a live target
// without any decision source. Actions are fully self-describing, so replay
// depends only on the target's current state matching what the log assumes;
// where it doesn't, the divergence is reported rather than hidden.
package replay

import (
	"context"
	"fmt"
	"io"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/executor"
	"github.com/ormasoftchile/axtest/pkg/session"
)

// StepOutcome compares one replayed step against its original result.
type StepOutcome struct {
	Seq      int            `json:"seq"`
	Action   action.Action  `json:"action"`
	Original *action.Result `json:"original"`
	Replayed *action.Result `json:"replayed"`
	Diverged bool           `json:"diverged"`
}

// Report enumerates every step outcome of a replay run.
type Report struct {
	Steps      []*StepOutcome `json:"steps"`
	Diverged   int            `json:"diverged"`
	Reproduced bool           `json:"reproduced"`
}

// Engine replays a recorded log through the shared executor.
type Engine struct {
	Executor *executor.Executor

	// Progress receives per-step lines. Nil silences it.
	Progress io.Writer
}

// Run re-executes each logged action strictly in order. A diverging step is
// recorded and replay continues; only cancellation or a log-append failure
// stops the run early, since a partial comparison is worth less than a full
// one.
func (e *Engine) Run(ctx context.Context, records []*session.Record) (*Report, error) {
	report := &Report{}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("replay canceled at step %d: %w", rec.Seq, err)
		}

		res, err := e.Executor.Execute(ctx, rec.Action)
		if err != nil {
			return report, fmt.Errorf("replay step %d: %w", rec.Seq, err)
		}

		out := &StepOutcome{
			Seq:      rec.Seq,
			Action:   rec.Action,
			Original: rec.Result,
			Replayed: res,
			Diverged: diverged(rec.Result, res),
		}
		report.Steps = append(report.Steps, out)
		if out.Diverged {
			report.Diverged++
			e.progress("≠ step %d: %s (was %s, now %s)\n", rec.Seq, rec.Action.Describe(),
				describeResult(rec.Result), describeResult(res))
		} else {
			e.progress("✓ step %d: %s\n", rec.Seq, rec.Action.Describe())
		}
	}

	report.Reproduced = report.Diverged == 0
	return report, nil
}

// diverged compares the outcome classes of two results. Status and error
// kind are the replay contract; elapsed time and observed text are expected
// to drift between runs.
func diverged(original, replayed *action.Result) bool {
	if original == nil || replayed == nil {
		return (original == nil) != (replayed == nil)
	}
	return original.Status != replayed.Status || original.ErrorKind != replayed.ErrorKind
}

func describeResult(r *action.Result) string {
	if r == nil {
		return "missing"
	}
	if r.Status == action.StatusSuccess {
		return "success"
	}
	return string(r.ErrorKind)
}

func (e *Engine) progress(format string, args ...any) {
	if e.Progress != nil {
		fmt.Fprintf(e.Progress, format, args...)
	}
}
