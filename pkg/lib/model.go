package lib

import (
	"errors"
	"time"

	"github.com/slok/imagegen/internal/model"
)

// EngineType identifies the generation engine implementation.
type EngineType string

const (
	// EngineCommand runs an external generator program for every item.
	EngineCommand EngineType = "command"
	// EngineDocker runs a generator container for every item.
	EngineDocker EngineType = "docker"
	// EngineFake renders flat color images without any model.
	// Use this for unit testing without infrastructure dependencies.
	EngineFake EngineType = "fake"
)

// SessionStatus represents the lifecycle state of a session.
//
// The lifecycle is:
//
//	pending -> running -> completed | completed_with_errors | failed
type SessionStatus string

const (
	// SessionStatusPending indicates the session was started but nothing was processed.
	SessionStatusPending SessionStatus = "pending"
	// SessionStatusRunning indicates the session is being processed or was interrupted.
	SessionStatusRunning SessionStatus = "running"
	// SessionStatusCompleted indicates all the items were generated.
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusCompletedWithErrors indicates all the items were processed and some failed.
	SessionStatusCompletedWithErrors SessionStatus = "completed_with_errors"
	// SessionStatusFailed indicates the session couldn't be processed (e.g. the engine didn't load).
	SessionStatusFailed SessionStatus = "failed"
)

// Parameters are the generation parameters of an item. Zero values use the defaults.
type Parameters struct {
	Width         int
	Height        int
	Steps         int
	GuidanceScale float64
}

// WorkItem is a single image to generate.
type WorkItem struct {
	// Position is the unique label of the item, it's used on the output filename.
	Position       string
	Prompt         string
	NegativePrompt string
	Parameters     Parameters
}

// ItemStatus is the result status of a processed item.
type ItemStatus string

const (
	// ItemStatusSuccess indicates the image was generated.
	ItemStatusSuccess ItemStatus = "success"
	// ItemStatusFailed indicates the image could not be generated.
	ItemStatusFailed ItemStatus = "failed"
)

// ItemResult is the outcome of a processed item.
type ItemResult struct {
	Index    int
	Position string
	Status   ItemStatus
	// OutputPath is the generated image path, only on success.
	OutputPath string
	// Error is the failure reason, only on failure.
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// Session is a read-only snapshot of the checkpointed session.
type Session struct {
	ID             string
	Status         SessionStatus
	OutputDir      string
	StartedAt      *time.Time
	CompletedAt    *time.Time
	Error          string
	Items          []WorkItem
	Cursor         int
	CompletedCount int
	FailedCount    int
	Results        []ItemResult
}

// RunOutcome is the result of a resume.
type RunOutcome struct {
	Session Session
	// Interrupted is true when the run stopped before processing all the items.
	Interrupted bool
	// Processed is the number of items processed by this run.
	Processed int
}

// Supervisor is the process holding the instance lock.
type Supervisor struct {
	PID        int
	AcquiredAt time.Time
	Alive      bool
}

// Status is the current state of a data directory.
type Status struct {
	// Session is nil when nothing has been checkpointed.
	Session *Session
	// Supervisor is nil when no process holds the lock.
	Supervisor *Supervisor
}

// --- Errors ---

var (
	// ErrNotValid is returned when the input is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrAlreadyRunning is returned when another live process holds the instance lock.
	ErrAlreadyRunning = errors.New("already running")
	// ErrNoActiveSession is returned when there is no resumable session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrCorruptCheckpoint is returned when the checkpoint is not valid.
	ErrCorruptCheckpoint = errors.New("corrupt checkpoint")
	// ErrNotRunning is returned when there is no supervisor to stop.
	ErrNotRunning = errors.New("not running")
	// ErrStopNotConfirmed is returned when the supervisor didn't exit in time.
	ErrStopNotConfirmed = errors.New("stop not confirmed")
)

// --- Internal conversion helpers ---

func toInternalParameters(p Parameters) model.GenerationParameters {
	return model.GenerationParameters{
		Width:         p.Width,
		Height:        p.Height,
		Steps:         p.Steps,
		GuidanceScale: p.GuidanceScale,
	}
}

func fromInternalParameters(p model.GenerationParameters) Parameters {
	return Parameters{
		Width:         p.Width,
		Height:        p.Height,
		Steps:         p.Steps,
		GuidanceScale: p.GuidanceScale,
	}
}

func toInternalWorkItems(items []WorkItem) []model.WorkItem {
	res := make([]model.WorkItem, 0, len(items))
	for _, it := range items {
		res = append(res, model.WorkItem{
			Position:       it.Position,
			Prompt:         it.Prompt,
			NegativePrompt: it.NegativePrompt,
			Parameters:     toInternalParameters(it.Parameters),
		})
	}
	return res
}

func fromInternalSession(s model.Session) Session {
	items := make([]WorkItem, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, WorkItem{
			Position:       it.Position,
			Prompt:         it.Prompt,
			NegativePrompt: it.NegativePrompt,
			Parameters:     fromInternalParameters(it.Parameters),
		})
	}

	results := make([]ItemResult, 0, len(s.Results))
	for _, r := range s.Results {
		results = append(results, ItemResult{
			Index:      r.Index,
			Position:   r.Position,
			Status:     ItemStatus(r.Status),
			OutputPath: r.OutputPath,
			Error:      r.Error,
			Duration:   r.Duration,
			Timestamp:  r.Timestamp,
		})
	}

	return Session{
		ID:             s.ID,
		Status:         SessionStatus(s.Status),
		OutputDir:      s.OutputDir,
		StartedAt:      s.StartedAt,
		CompletedAt:    s.CompletedAt,
		Error:          s.Error,
		Items:          items,
		Cursor:         s.Cursor,
		CompletedCount: s.CompletedCount,
		FailedCount:    s.FailedCount,
		Results:        results,
	}
}

func fromInternalOutcome(o model.RunOutcome) RunOutcome {
	return RunOutcome{
		Session:     fromInternalSession(o.Session),
		Interrupted: o.Interrupted,
		Processed:   o.Processed,
	}
}

var errorMappings = []struct {
	internal error
	public   error
}{
	{model.ErrAlreadyRunning, ErrAlreadyRunning},
	{model.ErrNoActiveSession, ErrNoActiveSession},
	{model.ErrCorruptCheckpoint, ErrCorruptCheckpoint},
	{model.ErrNotRunning, ErrNotRunning},
	{model.ErrStopNotConfirmed, ErrStopNotConfirmed},
	{model.ErrNotValid, ErrNotValid},
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.internal) {
			return &mappedError{original: err, sentinel: m.public}
		}
	}

	return err
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
