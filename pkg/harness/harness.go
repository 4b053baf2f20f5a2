// Package harness wires one run end to end: resolve the target, open a
// session, build the executor and oracle, run the chosen engine, and turn
// any finding into a persisted ticket. The CLI and the MCP server both sit
// on top of this package so a run behaves identically from either surface.
package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/evidence"
	"github.com/ormasoftchile/axtest/pkg/executor"
	"github.com/ormasoftchile/axtest/pkg/explore"
	"github.com/ormasoftchile/axtest/pkg/guard"
	"github.com/ormasoftchile/axtest/pkg/minimize"
	"github.com/ormasoftchile/axtest/pkg/oracle"
	"github.com/ormasoftchile/axtest/pkg/replay"
	"github.com/ormasoftchile/axtest/pkg/scenario"
	"github.com/ormasoftchile/axtest/pkg/session"
	"github.com/ormasoftchile/axtest/pkg/target"
	"github.com/ormasoftchile/axtest/pkg/ticket"
)

// Options configures one harness instance. Zero values get sensible
// defaults; only Driver and Target are required.
type Options struct {
	Driver   driver.Driver
	Procs    target.ProcessAPI
	Launcher target.Launcher
	Journal  *target.Journal

	// Guard gates mutating actions. Nil disables gating. A guard without a
	// sampler gets one backed by the driver so motion detection works on
	// every surface.
	Guard *guard.Guard

	// Root is the sessions directory; Tickets the ticket store root.
	Root    string
	Tickets string

	Target         target.Spec
	Timeout        time.Duration
	StartupTimeout time.Duration

	Progress io.Writer
}

func (o *Options) defaults() {
	if o.Procs == nil {
		o.Procs = target.SystemProcs{}
	}
	if o.Launcher == nil {
		o.Launcher = target.ExecLauncher{}
	}
	if o.Root == "" {
		o.Root = "sessions"
	}
	if o.Tickets == "" {
		o.Tickets = "tickets"
	}
}

// Harness is one wired run: a resolved target, an open session, and the
// executor and oracle bound to them.
type Harness struct {
	Session  *session.Session
	Resolver *target.Resolver
	Target   *target.Resolved
	Executor *executor.Executor
	Oracle   *oracle.Engine

	opts Options
}

// RunResult is the session-level outcome common to every mode.
type RunResult struct {
	SessionID  string          `json:"session_id"`
	SessionDir string          `json:"session_dir"`
	Outcome    string          `json:"outcome"`
	Finding    *oracle.Finding `json:"finding,omitempty"`
	TicketID   string          `json:"ticket_id,omitempty"`
}

// New resolves the target and opens a session of the given mode. The oracle
// baseline is taken immediately so pre-existing windows are never reported
// as error dialogs later.
func New(ctx context.Context, mode session.Mode, opts Options) (*Harness, error) {
	opts.defaults()
	if opts.Driver == nil {
		return nil, fmt.Errorf("harness: no driver configured")
	}
	if opts.Guard != nil && opts.Guard.Sampler == nil {
		opts.Guard.Sampler = driver.Sampler{D: opts.Driver}
	}

	resolver := &target.Resolver{
		Procs:          opts.Procs,
		Windows:        opts.Driver,
		Launch:         opts.Launcher,
		Journal:        opts.Journal,
		StartupTimeout: opts.StartupTimeout,
	}
	resolved, err := resolver.Resolve(ctx, opts.Target)
	if err != nil {
		return nil, fmt.Errorf("resolve target: %w", err)
	}

	sess, err := session.New(opts.Root, mode)
	if err != nil {
		return nil, err
	}

	orc := oracle.NewEngine(opts.Driver, resolved.PID, func() bool {
		return resolver.Alive(resolved)
	})
	if err := orc.Baseline(ctx); err != nil {
		return nil, fmt.Errorf("oracle baseline: %w", err)
	}

	return &Harness{
		Session:  sess,
		Resolver: resolver,
		Target:   resolved,
		Oracle:   orc,
		Executor: &executor.Executor{
			Driver:      opts.Driver,
			Target:      resolved,
			Guard:       opts.Guard,
			Log:         sess.Log,
			SessionID:   sess.ID,
			Screenshots: filepath.Join(sess.Dir, "screenshots"),
			Timeout:     opts.Timeout,
		},
		opts: opts,
	}, nil
}

// Close releases the target. Launched targets are killed; attached targets
// are left alone, which Resolver.Close enforces.
func (h *Harness) Close() error {
	if h.Target == nil {
		return nil
	}
	return h.Resolver.Close(h.Target)
}

// RunScenario executes a validated scenario and finishes the session.
func (h *Harness) RunScenario(ctx context.Context, sc *scenario.Scenario) (*scenario.Report, *RunResult, error) {
	eng := scenario.NewEngine(sc, h.Executor, h.Oracle)
	eng.Progress = h.opts.Progress

	report, runErr := eng.Run(ctx)

	m := &session.Manifest{Scenario: sc.Meta.Name}
	res, err := h.finish(m, string(report.State), report.Finding)
	if err != nil {
		return report, res, err
	}
	return report, res, runErr
}

// RunRandom executes seeded exploration and finishes the session.
func (h *Harness) RunRandom(ctx context.Context, space *explore.Space, policy explore.Policy, seed uint64, maxSteps int) (*explore.Report, *RunResult, error) {
	h.Session.Seed = seed
	ex := &explore.Explorer{
		Space:    space,
		Policy:   policy,
		Executor: h.Executor,
		Oracle:   h.Oracle,
		Seed:     seed,
		MaxSteps: maxSteps,
		Progress: h.opts.Progress,
	}

	report, runErr := ex.Run(ctx)

	res, err := h.finish(&session.Manifest{}, string(report.Outcome), report.Finding)
	if err != nil {
		return report, res, err
	}
	return report, res, runErr
}

// Replay re-executes a recorded log and finishes the session. Divergence is
// reported, never ticketed: the interesting artifact is the comparison.
func (h *Harness) Replay(ctx context.Context, records []*session.Record) (*replay.Report, *RunResult, error) {
	eng := &replay.Engine{Executor: h.Executor, Progress: h.opts.Progress}

	report, runErr := eng.Run(ctx, records)

	outcome := "reproduced"
	if report.Diverged > 0 {
		outcome = "diverged"
	}
	res, err := h.finish(&session.Manifest{}, outcome, nil)
	if err != nil {
		return report, res, err
	}
	return report, res, runErr
}

// finish closes the action log, assembles a ticket when a finding is
// present, and writes the run manifest.
func (h *Harness) finish(m *session.Manifest, outcome string, f *oracle.Finding) (*RunResult, error) {
	res := &RunResult{
		SessionID:  h.Session.ID,
		SessionDir: h.Session.Dir,
		Outcome:    outcome,
		Finding:    f,
	}

	if h.Session.Log != nil {
		if err := h.Session.Log.Close(); err != nil {
			return res, err
		}
		h.Session.Log = nil
		h.Executor.Log = nil
	}

	records, err := session.ReadLog(h.Session.LogPath())
	if err != nil {
		return res, fmt.Errorf("read back action log: %w", err)
	}

	m.Target = h.Target.String()
	m.Outcome = outcome
	m.Actions = tally(records)
	if f != nil {
		m.Findings = 1
		id, terr := h.assembleTicket(f, records)
		if terr != nil {
			return res, terr
		}
		res.TicketID = id
		m.Tickets = []string{id}
	}

	if err := h.Session.Finish(m); err != nil {
		return res, err
	}
	return res, nil
}

func (h *Harness) assembleTicket(f *oracle.Finding, records []*session.Record) (string, error) {
	manifest := &session.Manifest{
		SessionID: h.Session.ID,
		Mode:      string(h.Session.Mode),
		Seed:      h.Session.Seed,
		Target:    h.Target.String(),
	}
	t := ticket.Assemble(ticket.Input{
		Finding:  f,
		Records:  records,
		Session:  manifest,
		Evidence: h.collectEvidence(),
	})
	store := &ticket.Store{Root: h.opts.Tickets}
	if _, err := store.Save(t, records); err != nil {
		return "", err
	}
	return t.ID, nil
}

// collectEvidence references every screenshot the run captured. Hashing
// failures drop the file rather than the ticket.
func (h *Harness) collectEvidence() []*evidence.Ref {
	dir := filepath.Join(h.Session.Dir, "screenshots")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var refs []*evidence.Ref
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ref, err := evidence.NewRef("screenshot", filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func tally(records []*session.Record) map[string]int {
	if len(records) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, rec := range records {
		counts[string(rec.Action.Tool)]++
	}
	return counts
}

// Factory builds a fresh harness per minimization attempt so every candidate
// replays against an untouched application instance.
type Factory func(ctx context.Context) (*Harness, error)

// MinimizeAttempt adapts a Factory into the minimizer's attempt callback:
// replay the candidate on a fresh target, then ask the oracle what fired.
func MinimizeAttempt(factory Factory) minimize.Attempt {
	return func(ctx context.Context, records []*session.Record) (oracle.Kind, error) {
		h, err := factory(ctx)
		if err != nil {
			return "", err
		}
		defer h.Close()

		eng := &replay.Engine{Executor: h.Executor}
		if _, err := eng.Run(ctx, records); err != nil {
			return "", err
		}
		f := h.Oracle.Check(ctx)

		// Candidate sessions keep their logs but never spawn tickets; only
		// the minimized result is worth filing.
		m := &session.Manifest{Target: h.Target.String(), Outcome: "candidate"}
		if f != nil {
			m.Findings = 1
		}
		if err := h.Session.Finish(m); err != nil {
			return "", err
		}
		h.Executor.Log = nil

		if f == nil {
			return "", nil
		}
		return f.Kind, nil
	}
}
