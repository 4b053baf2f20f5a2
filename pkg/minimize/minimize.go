// Package minimize shrinks a failing action log to a shorter one that still
// reproduces the same oracle kind, using a ddmin-style reduction. Every
// candidate is verified by a real replay against a freshly resolved target,
// so each attempt is expensive and the total is capped.
package minimize

import (
	"context"
	"fmt"
	"io"

	"github.com/ormasoftchile/axtest/pkg/oracle"
	"github.com/ormasoftchile/axtest/pkg/session"
)

// DefaultBudget caps replay attempts per minimization run.
const DefaultBudget = 20

// Attempt replays one candidate log against a fresh target and reports which
// oracle kind, if any, fired after the last step. The callback owns target
// setup and teardown per attempt.
type Attempt func(ctx context.Context, records []*session.Record) (oracle.Kind, error)

// Result is the outcome of a minimization run. When Succeeded is false,
// Minimized is the original log unchanged.
type Result struct {
	Minimized []*session.Record `json:"minimized"`
	Succeeded bool              `json:"succeeded"`
	Attempts  int               `json:"attempts"`
}

// Minimizer reduces failing logs through the Attempt callback.
type Minimizer struct {
	Attempt Attempt
	Budget  int

	// Progress receives per-attempt lines. Nil silences it.
	Progress io.Writer
}

// Run applies ddmin to the records: at increasing granularity, try removing
// each chunk and keep any shorter log that still reproduces kind. The input
// slice is never mutated; records keep their original sequence numbers so a
// minimized log still points at the original failure position.
func (m *Minimizer) Run(ctx context.Context, records []*session.Record, kind oracle.Kind) (*Result, error) {
	res := &Result{Minimized: records}
	if len(records) < 2 {
		return res, nil
	}

	budget := m.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	current := append([]*session.Record(nil), records...)
	n := 2

	for len(current) >= 2 && res.Attempts < budget {
		chunk := len(current) / n
		if chunk == 0 {
			break
		}

		reducedThisPass := false
		for i := 0; i < n && res.Attempts < budget; i++ {
			lo := i * chunk
			hi := lo + chunk
			if i == n-1 {
				hi = len(current)
			}
			candidate := without(current, lo, hi)
			if len(candidate) == 0 {
				continue
			}

			if err := ctx.Err(); err != nil {
				return m.finish(res, records, current), err
			}
			res.Attempts++
			got, err := m.Attempt(ctx, candidate)
			if err != nil {
				// A broken attempt says nothing about the candidate; skip
				// it and keep reducing with the rest of the budget.
				m.progress("⊘ attempt %d errored: %v\n", res.Attempts, err)
				continue
			}
			if got == kind {
				m.progress("✓ attempt %d: %d steps still reproduce %s\n", res.Attempts, len(candidate), kind)
				current = candidate
				if n > 2 {
					n--
				}
				reducedThisPass = true
				break
			}
			m.progress("✗ attempt %d: %d steps do not reproduce\n", res.Attempts, len(candidate))
		}

		if !reducedThisPass {
			if n >= len(current) {
				break
			}
			n = min(len(current), 2*n)
		}
	}

	return m.finish(res, records, current), nil
}

// finish decides success: a minimized log must be strictly shorter and was
// verified by the attempt that produced it.
func (m *Minimizer) finish(res *Result, original, current []*session.Record) *Result {
	if len(current) < len(original) {
		res.Minimized = current
		res.Succeeded = true
	} else {
		res.Minimized = original
		res.Succeeded = false
	}
	return res
}

// without returns a copy of records with [lo, hi) removed.
func without(records []*session.Record, lo, hi int) []*session.Record {
	out := make([]*session.Record, 0, len(records)-(hi-lo))
	out = append(out, records[:lo]...)
	out = append(out, records[hi:]...)
	return out
}

func (m *Minimizer) progress(format string, args ...any) {
	if m.Progress != nil {
		fmt.Fprintf(m.Progress, format, args...)
	}
}
