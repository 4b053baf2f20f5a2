package minimize

import (
	"context"
	"errors"
	"testing"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/oracle"
	"github.com/ormasoftchile/axtest/pkg/selector"
	"github.com/ormasoftchile/axtest/pkg/session"
)

func makeLog(n int) []*session.Record {
	records := make([]*session.Record, n)
	for i := range records {
		records[i] = &session.Record{
			Seq: i,
			Action: action.Action{
				Tool: action.Click,
				Args: action.Args{Selector: &selector.Selector{AutomationID: "MainButton"}},
			},
			Result: action.Success(),
		}
	}
	return records
}

// containsSeq simulates a failure that reproduces iff the culprit step is in
// the candidate log.
func containsSeq(culprit int) Attempt {
	return func(_ context.Context, records []*session.Record) (oracle.Kind, error) {
		for _, r := range records {
			if r.Seq == culprit {
				return oracle.ProcessTerminated, nil
			}
		}
		return "", nil
	}
}

func TestMinimizeFindsSingleCulprit(t *testing.T) {
	records := makeLog(10)
	m := &Minimizer{Attempt: containsSeq(7)}

	res, err := m.Run(context.Background(), records, oracle.ProcessTerminated)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Succeeded {
		t.Fatalf("minimization failed: %+v", res)
	}
	if len(res.Minimized) != 1 || res.Minimized[0].Seq != 7 {
		seqs := make([]int, len(res.Minimized))
		for i, r := range res.Minimized {
			seqs[i] = r.Seq
		}
		t.Fatalf("minimized to %v, want [7]", seqs)
	}
	if res.Attempts > DefaultBudget {
		t.Fatalf("attempts = %d", res.Attempts)
	}
}

func TestMinimizeNeverMutatesInput(t *testing.T) {
	records := makeLog(8)
	snapshot := append([]*session.Record(nil), records...)

	m := &Minimizer{Attempt: containsSeq(3)}
	if _, err := m.Run(context.Background(), records, oracle.ProcessTerminated); err != nil {
		t.Fatal(err)
	}

	if len(records) != 8 {
		t.Fatalf("input length changed to %d", len(records))
	}
	for i := range records {
		if records[i] != snapshot[i] {
			t.Fatalf("input record %d replaced", i)
		}
	}
}

func TestMinimizeFailsWhenNothingReproduces(t *testing.T) {
	records := makeLog(10)
	m := &Minimizer{Attempt: func(context.Context, []*session.Record) (oracle.Kind, error) {
		return "", nil
	}}

	res, err := m.Run(context.Background(), records, oracle.ProcessTerminated)
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded {
		t.Fatal("reported success without reproduction")
	}
	if len(res.Minimized) != len(records) {
		t.Fatalf("original log not retained: %d steps", len(res.Minimized))
	}
	if res.Attempts > DefaultBudget {
		t.Fatalf("budget exceeded: %d attempts", res.Attempts)
	}
}

func TestMinimizeRespectsBudget(t *testing.T) {
	records := makeLog(16)
	m := &Minimizer{
		Attempt: func(context.Context, []*session.Record) (oracle.Kind, error) { return "", nil },
		Budget:  3,
	}
	res, err := m.Run(context.Background(), records, oracle.Unresponsive)
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts > 3 {
		t.Fatalf("attempts = %d, budget 3", res.Attempts)
	}
}

func TestMinimizeSkipsErroringAttempts(t *testing.T) {
	records := makeLog(6)
	calls := 0
	inner := containsSeq(2)
	m := &Minimizer{Attempt: func(ctx context.Context, recs []*session.Record) (oracle.Kind, error) {
		calls++
		if calls == 1 {
			return "", errors.New("target failed to launch")
		}
		return inner(ctx, recs)
	}}

	res, err := m.Run(context.Background(), records, oracle.ProcessTerminated)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Succeeded {
		t.Fatalf("minimization failed after recoverable attempt error: %+v", res)
	}
}

func TestMinimizeWrongKindDoesNotCount(t *testing.T) {
	// A candidate that fails differently must not be kept.
	records := makeLog(6)
	m := &Minimizer{Attempt: func(_ context.Context, recs []*session.Record) (oracle.Kind, error) {
		if len(recs) < len(records) {
			return oracle.Unresponsive, nil
		}
		return oracle.ProcessTerminated, nil
	}}
	res, err := m.Run(context.Background(), records, oracle.ProcessTerminated)
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded {
		t.Fatal("kept a candidate reproducing a different oracle kind")
	}
}

func TestMinimizeTinyLog(t *testing.T) {
	records := makeLog(1)
	m := &Minimizer{Attempt: containsSeq(0)}
	res, err := m.Run(context.Background(), records, oracle.ProcessTerminated)
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded || len(res.Minimized) != 1 || res.Attempts != 0 {
		t.Fatalf("single-step log handled wrong: %+v", res)
	}
}
