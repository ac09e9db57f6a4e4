package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/imagegen/internal/lock"
	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/storage"
)

// ServiceConfig is the configuration for the status service.
type ServiceConfig struct {
	Lock       lock.Locker
	Processes  lock.ProcessManager
	Repository storage.CheckpointRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Lock == nil {
		return fmt.Errorf("lock is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Processes == nil {
		c.Processes = lock.UnixProcessManager{}
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Status"})

	return nil
}

// Service reports the checkpointed session and the supervisor state. It only reads,
// so it's safe to use while a run is in progress.
type Service struct {
	lock   lock.Locker
	procs  lock.ProcessManager
	repo   storage.CheckpointRepository
	logger log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		lock:   cfg.Lock,
		procs:  cfg.Processes,
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the status request parameters.
type Request struct{}

// Supervisor is the state of the process holding the instance lock.
type Supervisor struct {
	Lock  model.LockRecord
	Alive bool
}

// Result is the status result.
type Result struct {
	// Session is nil when nothing has been checkpointed.
	Session *model.Session
	// Supervisor is nil when there is no lock record.
	Supervisor *Supervisor
}

// Running returns true if a live supervisor holds the lock.
func (r Result) Running() bool {
	return r.Supervisor != nil && r.Supervisor.Alive
}

// Run returns the current status.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}

	session, err := s.repo.GetSession(ctx)
	switch {
	case errors.Is(err, model.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("could not load checkpoint: %w", err)
	default:
		res.Session = session
	}

	holder, err := s.lock.Holder()
	switch {
	case errors.Is(err, model.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("could not get lock holder: %w", err)
	default:
		res.Supervisor = &Supervisor{
			Lock:  *holder,
			Alive: s.procs.Alive(holder.PID),
		}
	}

	return res, nil
}
