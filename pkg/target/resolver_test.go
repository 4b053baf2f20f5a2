package target

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ormasoftchile/axtest/pkg/driver"
)

// fakeProcs is an in-memory ProcessAPI.
type fakeProcs struct {
	procs  []ProcInfo
	killed []int32
}

func (f *fakeProcs) PidExists(pid int32) (bool, error) {
	for _, p := range f.procs {
		if p.PID == pid {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProcs) List() ([]ProcInfo, error) { return f.procs, nil }

func (f *fakeProcs) Kill(pid int32) error {
	f.killed = append(f.killed, pid)
	kept := f.procs[:0]
	for _, p := range f.procs {
		if p.PID != pid {
			kept = append(kept, p)
		}
	}
	f.procs = kept
	return nil
}

// fakeLauncher registers the "launched" process and optionally pops a window
// into the fake driver after a delay, simulating a slow starter.
type fakeLauncher struct {
	procs       *fakeProcs
	windows     *driver.FakeDriver
	pid         int32
	windowDelay time.Duration
}

func (f *fakeLauncher) Start(exe string, args []string, cwd string) (int32, error) {
	f.procs.procs = append(f.procs.procs, ProcInfo{PID: f.pid, Name: baseName(exe)})
	pid := f.pid
	go func() {
		time.Sleep(f.windowDelay)
		f.windows.Windows = append(f.windows.Windows, driver.Window{Handle: 0xbeef, PID: pid, Title: "Launched App"})
	}()
	return f.pid, nil
}

func newResolver(t *testing.T, procs *fakeProcs, fd *driver.FakeDriver) *Resolver {
	t.Helper()
	return &Resolver{
		Procs:          procs,
		Windows:        fd,
		Journal:        &Journal{Path: filepath.Join(t.TempDir(), "launched.json")},
		StartupTimeout: 200 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}
}

func TestResolveByPID(t *testing.T) {
	procs := &fakeProcs{procs: []ProcInfo{{PID: 42, Name: "calc.exe"}, {PID: 43, Name: "calc.exe"}}}
	fd := driver.NewFakeDriver()
	r := newResolver(t, procs, fd)

	// PID resolution succeeds despite the process-name collision.
	got, err := r.Resolve(context.Background(), Spec{PID: 42})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.PID != 42 || got.ProcessName != "calc.exe" || got.LaunchedByUs {
		t.Errorf("unexpected target: %+v", got)
	}
}

func TestResolveByPIDNotRunning(t *testing.T) {
	r := newResolver(t, &fakeProcs{}, driver.NewFakeDriver())
	_, err := r.Resolve(context.Background(), Spec{PID: 999})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveByProcessName(t *testing.T) {
	procs := &fakeProcs{procs: []ProcInfo{{PID: 7, Name: "Notepad.exe"}}}
	r := newResolver(t, procs, driver.NewFakeDriver())

	got, err := r.Resolve(context.Background(), Spec{Process: "notepad.exe"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.PID != 7 {
		t.Errorf("pid = %d, want 7", got.PID)
	}
}

func TestResolveByProcessNameAmbiguous(t *testing.T) {
	procs := &fakeProcs{procs: []ProcInfo{{PID: 7, Name: "app.exe"}, {PID: 8, Name: "app.exe"}}}
	r := newResolver(t, procs, driver.NewFakeDriver())
	_, err := r.Resolve(context.Background(), Spec{Process: "app.exe"})
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("err = %v, want ErrAmbiguous", err)
	}
}

func TestResolveLaunchWaitsForSlowWindow(t *testing.T) {
	procs := &fakeProcs{}
	fd := driver.NewFakeDriver()
	r := newResolver(t, procs, fd)
	r.Launch = &fakeLauncher{procs: procs, windows: fd, pid: 1234, windowDelay: 30 * time.Millisecond}

	got, err := r.Resolve(context.Background(), Spec{Exe: `C:\apps\slow.exe`})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !got.LaunchedByUs {
		t.Error("launched target should have LaunchedByUs set")
	}
	if got.ProcessName != "slow.exe" {
		t.Errorf("process name = %q", got.ProcessName)
	}
	if !r.Journal.Contains(1234) {
		t.Error("launched pid missing from journal")
	}
}

func TestResolveLaunchTimeoutIsTimeoutNotNotFound(t *testing.T) {
	procs := &fakeProcs{}
	fd := driver.NewFakeDriver()
	r := newResolver(t, procs, fd)
	r.StartupTimeout = 30 * time.Millisecond
	// Window never appears.
	r.Launch = &fakeLauncher{procs: procs, windows: fd, pid: 55, windowDelay: time.Hour}

	_, err := r.Resolve(context.Background(), Spec{Exe: "never.exe"})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("poll exhaustion must not be reported as NotFound")
	}
}

func TestResolveByTitlePattern(t *testing.T) {
	procs := &fakeProcs{procs: []ProcInfo{{PID: 9, Name: "editor.exe"}}}
	fd := driver.NewFakeDriver()
	fd.Windows = []driver.Window{
		{Handle: 1, PID: 9, Title: "report.txt - My Editor"},
		{Handle: 2, PID: 10, Title: "Task Manager"},
	}
	r := newResolver(t, procs, fd)

	got, err := r.Resolve(context.Background(), Spec{TitleRe: `my editor$`})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.PID != 9 || got.WindowHandle != 1 {
		t.Errorf("unexpected target: %+v", got)
	}
}

func TestResolveByTitleAmbiguous(t *testing.T) {
	fd := driver.NewFakeDriver()
	fd.Windows = []driver.Window{
		{Handle: 1, PID: 9, Title: "Editor - a"},
		{Handle: 2, PID: 10, Title: "Editor - b"},
	}
	r := newResolver(t, &fakeProcs{}, fd)
	_, err := r.Resolve(context.Background(), Spec{TitleRe: "Editor"})
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("err = %v, want ErrAmbiguous", err)
	}
}

func TestCloseRefusedForAttachedTarget(t *testing.T) {
	procs := &fakeProcs{procs: []ProcInfo{{PID: 42, Name: "calc.exe"}}}
	r := newResolver(t, procs, driver.NewFakeDriver())
	tgt, err := r.Resolve(context.Background(), Spec{PID: 42})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := r.Close(tgt); err == nil {
		t.Fatal("expected close of attached target to be refused")
	}
	if len(procs.killed) != 0 {
		t.Error("attached process must never be killed")
	}
}

func TestCloseLaunchedTarget(t *testing.T) {
	procs := &fakeProcs{}
	fd := driver.NewFakeDriver()
	r := newResolver(t, procs, fd)
	r.Launch = &fakeLauncher{procs: procs, windows: fd, pid: 77, windowDelay: 0}

	tgt, err := r.Resolve(context.Background(), Spec{Exe: "app.exe"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := r.Close(tgt); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(procs.killed) != 1 || procs.killed[0] != 77 {
		t.Errorf("killed = %v, want [77]", procs.killed)
	}
	if r.Journal.Contains(77) {
		t.Error("journal should drop closed pid")
	}
}

func TestAlive(t *testing.T) {
	procs := &fakeProcs{procs: []ProcInfo{{PID: 5, Name: "a"}}}
	r := newResolver(t, procs, driver.NewFakeDriver())
	tgt := &Resolved{PID: 5}
	if !r.Alive(tgt) {
		t.Error("expected alive")
	}
	procs.procs = nil
	if r.Alive(tgt) {
		t.Error("expected dead after process exit")
	}
}
