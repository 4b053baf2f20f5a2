package target

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ormasoftchile/axtest/pkg/driver"
)

// Default timing for launch-and-wait resolution.
const (
	DefaultStartupTimeout = 15 * time.Second
	DefaultPollInterval   = 250 * time.Millisecond
)

// WindowLister is the slice of the driver needed for title and launch
// resolution. *driver.RPCDriver and *driver.FakeDriver both satisfy it.
type WindowLister interface {
	ListWindows(ctx context.Context) ([]driver.Window, error)
}

// Resolver maps a Spec to a Resolved target. Every call re-resolves from
// scratch; there is no registry.
type Resolver struct {
	Procs   ProcessAPI
	Windows WindowLister
	Launch  Launcher
	Journal *Journal

	// StartupTimeout bounds launch-and-wait; PollInterval is the fixed
	// poll period while waiting for the launched window.
	StartupTimeout time.Duration
	PollInterval   time.Duration
}

// Resolve applies the resolution order: PID, process name, exe launch,
// title pattern. Returns ErrNotFound, ErrAmbiguous or ErrTimeout wrapped
// with context.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) (*Resolved, error) {
	switch {
	case spec.PID != 0:
		return r.resolvePID(ctx, spec.PID)
	case spec.Process != "":
		return r.resolveProcess(ctx, spec.Process)
	case spec.Exe != "":
		return r.resolveLaunch(ctx, spec)
	case spec.TitleRe != "":
		return r.resolveTitle(ctx, spec.TitleRe)
	default:
		return nil, fmt.Errorf("empty target spec: %w", ErrNotFound)
	}
}

// Alive reports whether a previously resolved target's process still runs.
func (r *Resolver) Alive(t *Resolved) bool {
	ok, err := r.Procs.PidExists(t.PID)
	return err == nil && ok
}

// Close terminates a target, but only if this harness launched it; both
// the handle flag and the persisted journal must agree.
func (r *Resolver) Close(t *Resolved) error {
	if !t.LaunchedByUs {
		return fmt.Errorf("refusing to close %s: not launched by this harness", t)
	}
	if r.Journal != nil && !r.Journal.Contains(t.PID) {
		return fmt.Errorf("refusing to close %s: pid missing from launch journal", t)
	}
	if err := r.Procs.Kill(t.PID); err != nil {
		return fmt.Errorf("kill pid %d: %w", t.PID, err)
	}
	if r.Journal != nil {
		if err := r.Journal.Remove(t.PID); err != nil {
			return fmt.Errorf("update launch journal: %w", err)
		}
	}
	return nil
}

func (r *Resolver) resolvePID(ctx context.Context, pid int32) (*Resolved, error) {
	ok, err := r.Procs.PidExists(pid)
	if err != nil {
		return nil, fmt.Errorf("check pid %d: %w", pid, err)
	}
	if !ok {
		return nil, fmt.Errorf("pid %d is not running: %w", pid, ErrNotFound)
	}
	name := ""
	if procs, err := r.Procs.List(); err == nil {
		for _, p := range procs {
			if p.PID == pid {
				name = p.Name
				break
			}
		}
	}
	t := &Resolved{ID: newID(), PID: pid, ProcessName: name}
	r.attachWindow(ctx, t)
	return t, nil
}

func (r *Resolver) resolveProcess(ctx context.Context, name string) (*Resolved, error) {
	procs, err := r.Procs.List()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	var matches []ProcInfo
	for _, p := range procs {
		if strings.EqualFold(p.Name, name) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("process %q: %w", name, ErrNotFound)
	case 1:
		t := &Resolved{ID: newID(), PID: matches[0].PID, ProcessName: matches[0].Name}
		r.attachWindow(ctx, t)
		return t, nil
	default:
		return nil, fmt.Errorf("process %q matched %d running processes: %w", name, len(matches), ErrAmbiguous)
	}
}

// resolveLaunch spawns the executable, then polls for a window owned by the
// new PID. Slow starters are tolerated via repeated polls; exhausting the
// startup timeout is Timeout, distinct from NotFound.
func (r *Resolver) resolveLaunch(ctx context.Context, spec Spec) (*Resolved, error) {
	pid, err := r.Launch.Start(spec.Exe, spec.Args, spec.Cwd)
	if err != nil {
		return nil, fmt.Errorf("launch %q: %w", spec.Exe, err)
	}
	if r.Journal != nil {
		if err := r.Journal.Record(pid, spec.Exe); err != nil {
			return nil, fmt.Errorf("record launched pid: %w", err)
		}
	}

	name := baseName(spec.Exe)
	timeout := r.StartupTimeout
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	poll := r.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	deadline := time.Now().Add(timeout)
	for {
		if alive, err := r.Procs.PidExists(pid); err == nil && !alive {
			return nil, fmt.Errorf("launched process %q (pid %d) exited before showing a window: %w", spec.Exe, pid, ErrNotFound)
		}
		if w := r.windowForPID(ctx, pid); w != nil {
			return &Resolved{
				ID:           newID(),
				PID:          pid,
				ProcessName:  name,
				WindowHandle: w.Handle,
				LaunchedByUs: true,
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("no window for launched %q (pid %d) within %v: %w", spec.Exe, pid, timeout, ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(poll):
		}
	}
}

func (r *Resolver) resolveTitle(ctx context.Context, pattern string) (*Resolved, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid title pattern %q: %w", pattern, err)
	}
	windows, err := r.Windows.ListWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	var matches []driver.Window
	for _, w := range windows {
		if re.MatchString(w.Title) {
			matches = append(matches, w)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no window matching %q: %w", pattern, ErrNotFound)
	case 1:
		w := matches[0]
		name := ""
		if procs, err := r.Procs.List(); err == nil {
			for _, p := range procs {
				if p.PID == w.PID {
					name = p.Name
					break
				}
			}
		}
		return &Resolved{ID: newID(), PID: w.PID, ProcessName: name, WindowHandle: w.Handle}, nil
	default:
		return nil, fmt.Errorf("title pattern %q matched %d windows: %w", pattern, len(matches), ErrAmbiguous)
	}
}

func (r *Resolver) attachWindow(ctx context.Context, t *Resolved) {
	if w := r.windowForPID(ctx, t.PID); w != nil {
		t.WindowHandle = w.Handle
	}
}

func (r *Resolver) windowForPID(ctx context.Context, pid int32) *driver.Window {
	if r.Windows == nil {
		return nil
	}
	windows, err := r.Windows.ListWindows(ctx)
	if err != nil {
		return nil
	}
	for _, w := range windows {
		if w.PID == pid {
			return &w
		}
	}
	return nil
}

func baseName(exe string) string {
	exe = strings.ReplaceAll(exe, "\\", "/")
	if i := strings.LastIndex(exe, "/"); i >= 0 {
		return exe[i+1:]
	}
	return exe
}
