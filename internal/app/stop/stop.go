package stop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/imagegen/internal/lock"
	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/storage"
)

// ServiceConfig is the configuration for the stop service.
type ServiceConfig struct {
	Lock       lock.Locker
	Processes  lock.ProcessManager
	Repository storage.CheckpointRepository
	// PollInterval is how often the holder liveness is checked while waiting.
	PollInterval time.Duration
	Logger       log.Logger
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

	if c.PollInterval <= 0 {
		c.PollInterval = 200 * time.Millisecond
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Stop"})

	return nil
}

// Service stops the supervisor holding the instance lock.
type Service struct {
	lock   lock.Locker
	procs  lock.ProcessManager
	repo   storage.CheckpointRepository
	poll   time.Duration
	logger log.Logger
}

// NewService creates a new stop service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		lock:   cfg.Lock,
		procs:  cfg.Processes,
		repo:   cfg.Repository,
		poll:   cfg.PollInterval,
		logger: cfg.Logger,
	}, nil
}

// Request represents the stop request parameters.
type Request struct {
	// SessionID is optional, when set the checkpointed session must match it.
	SessionID string
	// Wait is how long to wait for the supervisor to exit. Zero doesn't wait.
	Wait time.Duration
	// Force clears the lock record even if the exit could not be confirmed.
	Force bool
}

// Result is the stop result.
type Result struct {
	PID int
	// Confirmed is true when the supervisor was seen exiting.
	Confirmed bool
}

// Run sends a termination request to the lock holder.
//
// The supervisor finishes its in-flight item and checkpoints before exiting, so
// with a wait the lock record is only cleared once the exit is confirmed. Without
// a wait the record is cleared right after signaling.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Wait < 0 {
		return nil, fmt.Errorf("wait can't be negative: %w", model.ErrNotValid)
	}

	if req.SessionID != "" {
		session, err := s.repo.GetSession(ctx)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, fmt.Errorf("no checkpointed session: %w", model.ErrNoActiveSession)
			}
			return nil, fmt.Errorf("could not load checkpoint: %w", err)
		}
		if session.ID != req.SessionID {
			return nil, fmt.Errorf("checkpointed session is %q, not %q: %w", session.ID, req.SessionID, model.ErrNoActiveSession)
		}
	}

	holder, err := s.lock.Holder()
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("no supervisor holds the lock: %w", model.ErrNotRunning)
		}
		return nil, fmt.Errorf("could not get lock holder: %w", err)
	}

	if !s.procs.Alive(holder.PID) {
		s.logger.Warningf("Clearing stale lock from dead process (PID: %d)", holder.PID)
		s.clear(holder.PID)
		return nil, fmt.Errorf("supervisor process %d is not alive: %w", holder.PID, model.ErrNotRunning)
	}

	if err := s.procs.Terminate(holder.PID); err != nil {
		return nil, fmt.Errorf("could not signal supervisor process %d: %w", holder.PID, err)
	}
	s.logger.Infof("Termination requested to supervisor (PID: %d)", holder.PID)

	res := &Result{PID: holder.PID}
	if req.Wait == 0 {
		s.clear(holder.PID)
		return res, nil
	}

	exited, err := s.waitExit(ctx, holder.PID, req.Wait)
	if err != nil {
		return nil, err
	}

	if !exited {
		if !req.Force {
			return nil, fmt.Errorf("supervisor process %d still alive after %s: %w", holder.PID, req.Wait, model.ErrStopNotConfirmed)
		}
		s.logger.Warningf("Supervisor (PID: %d) still alive after %s, clearing its lock anyway", holder.PID, req.Wait)
		s.clear(holder.PID)
		return res, nil
	}

	s.clear(holder.PID)
	res.Confirmed = true
	s.logger.Infof("Supervisor (PID: %d) stopped", holder.PID)

	return res, nil
}

func (s *Service) waitExit(ctx context.Context, pid int, wait time.Duration) (bool, error) {
	timeout := time.NewTimer(wait)
	defer timeout.Stop()
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		if !s.procs.Alive(pid) {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timeout.C:
			return !s.procs.Alive(pid), nil
		case <-ticker.C:
		}
	}
}

// clear removes the lock record only if it still belongs to pid, a new supervisor
// could have taken it after the old one exited.
func (s *Service) clear(pid int) {
	holder, err := s.lock.Holder()
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.logger.Warningf("could not get lock holder: %v", err)
		}
		return
	}

	if holder.PID != pid {
		return
	}

	if err := s.lock.Release(); err != nil {
		s.logger.Warningf("could not clear lock record: %v", err)
	}
}
