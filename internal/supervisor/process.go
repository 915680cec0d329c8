package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessProber answers whether a PID is a live process.
type ProcessProber interface {
	Alive(pid int) bool
}

// Spawner starts a detached daemon process and returns its PID. The spawner
// never waits on the child.
type Spawner interface {
	Spawn(script string, extraEnv []string) (int, error)
}

// MemoryChecker reports used host memory as a percentage.
type MemoryChecker interface {
	UsedPercent() (float64, error)
}

// GopsutilProber probes liveness via gopsutil. PidExists returns false for
// absent processes instead of raising, which is exactly the contract the
// supervisor needs.
type GopsutilProber struct{}

// Alive reports whether pid refers to a running process.
func (GopsutilProber) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}

// GopsutilMemory reads host memory via gopsutil.
type GopsutilMemory struct{}

// UsedPercent returns used physical memory as a percentage.
func (GopsutilMemory) UsedPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("read virtual memory: %w", err)
	}
	return vm.UsedPercent, nil
}

// DetachedSpawner launches the daemon script in its own session with stdio
// routed to a log file, then releases the child so nothing waits on it.
type DetachedSpawner struct{}

// Spawn starts the script detached and returns the child PID.
func (DetachedSpawner) Spawn(script string, extraEnv []string) (int, error) {
	if script == "" {
		return 0, fmt.Errorf("daemon script path is empty")
	}

	cmd := exec.Command(script)
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	logPath := filepath.Join(filepath.Dir(script), "daemon-restart.log")
	if logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		defer func() { _ = logFile.Close() }()
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn daemon %s: %w", script, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release daemon process: %w", err)
	}
	return pid, nil
}
