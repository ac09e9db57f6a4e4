package model

import (
	"fmt"
	"time"
)

// SessionStatus represents the status of a generation session.
type SessionStatus string

const (
	// SessionStatusPending indicates the session has been started but never processed.
	SessionStatusPending SessionStatus = "pending"
	// SessionStatusRunning indicates the session is being (or was being) processed.
	SessionStatusRunning SessionStatus = "running"
	// SessionStatusCompleted indicates all the items were generated.
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusCompletedWithErrors indicates all the items were processed and some failed.
	SessionStatusCompletedWithErrors SessionStatus = "completed_with_errors"
	// SessionStatusFailed indicates the session was aborted and can't be resumed.
	SessionStatusFailed SessionStatus = "failed"
)

// Valid returns true if the status is a known one.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusPending, SessionStatusRunning, SessionStatusCompleted,
		SessionStatusCompletedWithErrors, SessionStatusFailed:
		return true
	}
	return false
}

// Resumable returns true if a session in this status can be processed.
func (s SessionStatus) Resumable() bool {
	return s == SessionStatusPending || s == SessionStatusRunning
}

// Terminal returns true if the session will not be processed anymore.
func (s SessionStatus) Terminal() bool {
	return s.Valid() && !s.Resumable()
}

// ItemStatus represents the outcome of a processed work item.
type ItemStatus string

const (
	ItemStatusSuccess ItemStatus = "success"
	ItemStatusFailed  ItemStatus = "failed"
)

// Default generation parameters.
const (
	DefaultWidth         = 1600
	DefaultHeight        = 896
	DefaultSteps         = 25
	DefaultGuidanceScale = 7.5
)

// GenerationParameters are the named parameters passed to the generation engine.
type GenerationParameters struct {
	Width         int
	Height        int
	Steps         int
	GuidanceScale float64
}

// WithDefaults returns a copy with the unset parameters set to the defaults.
func (p GenerationParameters) WithDefaults(defaults GenerationParameters) GenerationParameters {
	if p.Width == 0 {
		p.Width = defaults.Width
	}
	if p.Height == 0 {
		p.Height = defaults.Height
	}
	if p.Steps == 0 {
		p.Steps = defaults.Steps
	}
	if p.GuidanceScale == 0 {
		p.GuidanceScale = defaults.GuidanceScale
	}
	return p
}

// DefaultGenerationParameters returns the default generation parameters.
func DefaultGenerationParameters() GenerationParameters {
	return GenerationParameters{
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		Steps:         DefaultSteps,
		GuidanceScale: DefaultGuidanceScale,
	}
}

// Validate validates the parameters.
func (p GenerationParameters) Validate() error {
	if p.Width <= 0 {
		return fmt.Errorf("width must be positive, got: %d: %w", p.Width, ErrNotValid)
	}
	if p.Height <= 0 {
		return fmt.Errorf("height must be positive, got: %d: %w", p.Height, ErrNotValid)
	}
	if p.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got: %d: %w", p.Steps, ErrNotValid)
	}
	if p.GuidanceScale < 0 {
		return fmt.Errorf("guidance scale can't be negative, got: %f: %w", p.GuidanceScale, ErrNotValid)
	}
	return nil
}

// WorkItem is an immutable generation request.
type WorkItem struct {
	// Position is the logical position label, used to derive output filenames.
	Position       string
	Prompt         string
	NegativePrompt string
	Parameters     GenerationParameters
}

// ItemResult is the outcome of processing a work item. Never mutated once appended.
type ItemResult struct {
	Index      int
	Position   string
	Status     ItemStatus
	OutputPath string
	Error      string
	Duration   time.Duration
	Timestamp  time.Time
}

// Session is a generation run.
type Session struct {
	ID          string
	Status      SessionStatus
	OutputDir   string
	StartedAt   *time.Time
	CompletedAt *time.Time
	// Error is set when the session failed.
	Error string

	Items          []WorkItem
	Cursor         int
	CompletedCount int
	FailedCount    int
	Results        []ItemResult
}

// NewSession returns a new pending session ready to be processed from the first item.
func NewSession(id, outputDir string, items []WorkItem, now time.Time) Session {
	startedAt := now.UTC()
	return Session{
		ID:        id,
		Status:    SessionStatusPending,
		OutputDir: outputDir,
		StartedAt: &startedAt,
		Items:     append([]WorkItem{}, items...),
		Results:   []ItemResult{},
	}
}

// Finished returns true if all the items have been processed.
func (s Session) Finished() bool {
	return s.Cursor >= len(s.Items)
}

// Pending returns the number of unprocessed items.
func (s Session) Pending() int {
	return len(s.Items) - s.Cursor
}

// Record appends the result of the item at the cursor and advances the cursor.
func (s *Session) Record(r ItemResult) error {
	if s.Finished() {
		return fmt.Errorf("can't record result, all items processed: %w", ErrNotValid)
	}
	if r.Index != s.Cursor {
		return fmt.Errorf("result index %d doesn't match cursor %d: %w", r.Index, s.Cursor, ErrNotValid)
	}

	switch r.Status {
	case ItemStatusSuccess:
		s.CompletedCount++
	case ItemStatusFailed:
		s.FailedCount++
	default:
		return fmt.Errorf("unknown result status %q: %w", r.Status, ErrNotValid)
	}

	s.Results = append(s.Results, r)
	s.Cursor++
	return nil
}

// Finalize sets the terminal status of a session that processed all the items.
func (s *Session) Finalize(now time.Time) {
	completedAt := now.UTC()
	s.CompletedAt = &completedAt
	s.Status = SessionStatusCompleted
	if s.FailedCount > 0 {
		s.Status = SessionStatusCompletedWithErrors
	}
}

// ValidateItems validates a work item list used to start a session.
func ValidateItems(items []WorkItem) error {
	if len(items) == 0 {
		return fmt.Errorf("at least one work item is required: %w", ErrNotValid)
	}

	positions := map[string]int{}
	for i, it := range items {
		if it.Position == "" {
			return fmt.Errorf("item %d: position is required: %w", i, ErrNotValid)
		}
		if prev, ok := positions[it.Position]; ok {
			return fmt.Errorf("item %d: position %q already used by item %d: %w", i, it.Position, prev, ErrNotValid)
		}
		positions[it.Position] = i

		if it.Prompt == "" {
			return fmt.Errorf("item %d (%s): prompt is required: %w", i, it.Position, ErrNotValid)
		}
		if err := it.Parameters.Validate(); err != nil {
			return fmt.Errorf("item %d (%s): %w", i, it.Position, err)
		}
	}

	return nil
}

// Validate checks the structural invariants of a session.
func (s Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session id is required: %w", ErrNotValid)
	}
	if !s.Status.Valid() {
		return fmt.Errorf("unknown status %q: %w", s.Status, ErrNotValid)
	}
	if s.Cursor < 0 || s.Cursor > len(s.Items) {
		return fmt.Errorf("cursor %d out of range [0, %d]: %w", s.Cursor, len(s.Items), ErrNotValid)
	}
	if s.CompletedCount < 0 || s.FailedCount < 0 {
		return fmt.Errorf("negative counters: %w", ErrNotValid)
	}
	if s.CompletedCount+s.FailedCount != s.Cursor {
		return fmt.Errorf("completed (%d) + failed (%d) doesn't match cursor %d: %w", s.CompletedCount, s.FailedCount, s.Cursor, ErrNotValid)
	}
	if len(s.Results) != s.Cursor {
		return fmt.Errorf("results (%d) doesn't match cursor %d: %w", len(s.Results), s.Cursor, ErrNotValid)
	}

	completed, failed := 0, 0
	for i, r := range s.Results {
		if r.Index != i {
			return fmt.Errorf("result %d: index %d out of order: %w", i, r.Index, ErrNotValid)
		}
		switch r.Status {
		case ItemStatusSuccess:
			completed++
		case ItemStatusFailed:
			failed++
		default:
			return fmt.Errorf("result %d: unknown status %q: %w", i, r.Status, ErrNotValid)
		}
	}
	if completed != s.CompletedCount || failed != s.FailedCount {
		return fmt.Errorf("results don't match counters: %w", ErrNotValid)
	}

	if s.Status.Terminal() && s.Status != SessionStatusFailed && !s.Finished() {
		return fmt.Errorf("status %s with pending items: %w", s.Status, ErrNotValid)
	}

	return nil
}

// LockRecord identifies the process holding the instance lock.
type LockRecord struct {
	PID        int
	AcquiredAt time.Time
}

// RunOutcome is the result of driving a session.
type RunOutcome struct {
	Session Session
	// Interrupted is true when the run stopped before processing all the items.
	Interrupted bool
	// Processed is the number of items processed by this run.
	Processed int
}

// ArchivedSession is a session snapshot stored in the history.
type ArchivedSession struct {
	ID         string
	ArchivedAt time.Time
	Session    Session
}

// Manifest is a work item list ready to start a session.
type Manifest struct {
	// SessionID and OutputDir are optional.
	SessionID string
	OutputDir string
	// Defaults are applied to the unset item parameters.
	Defaults GenerationParameters
	Items    []WorkItem
}
