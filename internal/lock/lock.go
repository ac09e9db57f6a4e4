// Package lock implements the instance lock that guarantees a single supervisor
// process per data directory.
//
// The lock is a PID file: present and pointing to a live process means held. A PID file
// pointing to a dead process is stale and is reclaimed on the next acquisition. This is
// advisory locking, every entry point must go through Acquire and Release.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/moby/sys/atomicwriter"
	"golang.org/x/sys/unix"

	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
)

// Locker is the instance lock.
type Locker interface {
	// Acquire takes the lock for the current process. It returns a *model.LockHeldError
	// (matching model.ErrAlreadyRunning) if a live process holds it.
	Acquire() error
	// Release removes the lock record unconditionally. It is idempotent.
	Release() error
	// IsHeld returns true if a live process holds the lock.
	IsHeld() (bool, error)
	// Holder returns the lock record, model.ErrNotFound if there is none.
	Holder() (*model.LockRecord, error)
}

// PIDFileLockConfig is the configuration for the PID file lock.
type PIDFileLockConfig struct {
	// Path is the PID file path.
	Path string
	// GuardPath is the file used to serialize acquisitions, by default Path + ".guard".
	GuardPath string
	// PID is the identifier written on acquisition, by default the current process.
	PID            int
	ProcessManager ProcessManager
	Logger         log.Logger
}

func (c *PIDFileLockConfig) defaults() error {
	if c.Path == "" {
		return fmt.Errorf("lock path is required")
	}
	if c.GuardPath == "" {
		c.GuardPath = c.Path + ".guard"
	}
	if c.PID == 0 {
		c.PID = os.Getpid()
	}
	if c.ProcessManager == nil {
		c.ProcessManager = UnixProcessManager{}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "lock.PIDFile"})
	return nil
}

// PIDFileLock is a Locker based on a PID file.
type PIDFileLock struct {
	path      string
	guardPath string
	pid       int
	procs     ProcessManager
	logger    log.Logger
}

// NewPIDFileLock returns a new PID file lock.
func NewPIDFileLock(cfg PIDFileLockConfig) (*PIDFileLock, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &PIDFileLock{
		path:      cfg.Path,
		guardPath: cfg.GuardPath,
		pid:       cfg.PID,
		procs:     cfg.ProcessManager,
		logger:    cfg.Logger,
	}, nil
}

// Acquire takes the lock. Acquiring a lock already owned by this PID succeeds.
func (l *PIDFileLock) Acquire() error {
	unlock, err := l.guard()
	if err != nil {
		return err
	}
	defer unlock()

	holder, err := l.readPID()
	switch {
	case errors.Is(err, model.ErrNotFound):
	case errors.Is(err, model.ErrNotValid):
		l.logger.Warningf("Reclaiming unreadable lock record: %v", err)
	case err != nil:
		return err
	case holder == l.pid:
		l.logger.Debugf("Lock already owned by this process (PID: %d)", l.pid)
		return nil
	case l.procs.Alive(holder):
		return &model.LockHeldError{PID: holder}
	default:
		l.logger.Warningf("Reclaiming stale lock from dead process (PID: %d)", holder)
	}

	if err := atomicwriter.WriteFile(l.path, []byte(strconv.Itoa(l.pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("could not write lock record: %w: %w", err, model.ErrIO)
	}

	l.logger.Debugf("Lock acquired (PID: %d)", l.pid)
	return nil
}

// Release removes the lock record.
func (l *PIDFileLock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not remove lock record: %w: %w", err, model.ErrIO)
	}

	l.logger.Debugf("Lock released")
	return nil
}

// IsHeld returns true if the lock record points to a live process.
func (l *PIDFileLock) IsHeld() (bool, error) {
	pid, err := l.readPID()
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrNotValid) {
			return false, nil
		}
		return false, err
	}

	return pid == l.pid || l.procs.Alive(pid), nil
}

// Holder returns the current lock record.
func (l *PIDFileLock) Holder() (*model.LockRecord, error) {
	pid, err := l.readPID()
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("lock record: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not stat lock record: %w: %w", err, model.ErrIO)
	}

	return &model.LockRecord{PID: pid, AcquiredAt: info.ModTime().UTC()}, nil
}

// Alive returns true if the process is alive.
func (l *PIDFileLock) Alive(pid int) bool {
	return pid == l.pid || l.procs.Alive(pid)
}

func (l *PIDFileLock) readPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("lock record: %w", model.ErrNotFound)
		}
		return 0, fmt.Errorf("could not read lock record: %w: %w", err, model.ErrIO)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid lock record %q: %w", strings.TrimSpace(string(data)), model.ErrNotValid)
	}

	return pid, nil
}

// guard takes an exclusive flock so check-then-write sequences of different
// processes don't interleave.
func (l *PIDFileLock) guard() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.guardPath), 0755); err != nil {
		return nil, fmt.Errorf("could not create lock directory: %w: %w", err, model.ErrIO)
	}

	f, err := os.OpenFile(l.guardPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open lock guard: %w: %w", err, model.ErrIO)
	}

	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("could not lock guard: %w: %w", err, model.ErrIO)
	}

	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
