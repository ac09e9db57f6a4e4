package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")

	// ErrAlreadyRunning is returned when the instance lock is held by a live process.
	ErrAlreadyRunning = errors.New("already running")
	// ErrNoActiveSession is returned when there is no resumable session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrCorruptCheckpoint is returned when a checkpoint exists but fails validation.
	// It is never auto repaired.
	ErrCorruptCheckpoint = errors.New("corrupt checkpoint")
	// ErrItemGeneration is returned by engines when a single item could not be generated.
	ErrItemGeneration = errors.New("item generation failed")
	// ErrIO is returned when checkpoint or lock persistence fails.
	ErrIO = errors.New("io error")
	// ErrNotRunning is returned when an operation needs a running supervisor and there is none.
	ErrNotRunning = errors.New("not running")
	// ErrStopNotConfirmed is returned when a stopped supervisor didn't exit in time.
	ErrStopNotConfirmed = errors.New("stop not confirmed")
)

// LockHeldError is returned when the instance lock is held by another live process.
type LockHeldError struct {
	PID int
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("lock held by process %d: %s", e.PID, ErrAlreadyRunning)
}

// Unwrap makes LockHeldError match ErrAlreadyRunning.
func (e *LockHeldError) Unwrap() error { return ErrAlreadyRunning }
