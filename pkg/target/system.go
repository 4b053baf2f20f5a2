package target

import (
	"fmt"
	"os/exec"

	"github.com/shirou/gopsutil/v4/process"
)

// SystemProcs implements ProcessAPI on top of gopsutil.
type SystemProcs struct{}

// PidExists implements ProcessAPI.
func (SystemProcs) PidExists(pid int32) (bool, error) {
	return process.PidExists(pid)
}

// List implements ProcessAPI. Processes that disappear mid-enumeration or
// deny access are skipped, matching how any system monitor behaves.
func (SystemProcs) List() ([]ProcInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}
	out := make([]ProcInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		out = append(out, ProcInfo{PID: p.Pid, Name: name})
	}
	return out, nil
}

// Kill implements ProcessAPI.
func (SystemProcs) Kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return fmt.Errorf("pid %d: %w", pid, err)
	}
	return p.Kill()
}

// ExecLauncher implements Launcher with os/exec. The child is detached from
// our lifetime; we only need its PID.
type ExecLauncher struct{}

// Start implements Launcher.
func (ExecLauncher) Start(exe string, args []string, cwd string) (int32, error) {
	cmd := exec.Command(exe, args...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := int32(cmd.Process.Pid)
	// Reap the child in the background so it doesn't linger as a zombie.
	go cmd.Wait()
	return pid, nil
}
