package lock

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ProcessManager knows how to probe and terminate OS processes.
type ProcessManager interface {
	// Alive returns true if the process exists. It must not affect the process.
	Alive(pid int) bool
	// Terminate sends a termination request to the process.
	Terminate(pid int) error
}

// UnixProcessManager is the ProcessManager based on POSIX signals.
type UnixProcessManager struct{}

// Alive probes the process with the null signal.
func (UnixProcessManager) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}

	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return true
	// Exists but owned by someone else.
	case errors.Is(err, unix.EPERM):
		return true
	default:
		return false
	}
}

// Terminate sends SIGTERM to the process.
func (UnixProcessManager) Terminate(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("could not signal process %d: %w", pid, err)
	}

	return nil
}
