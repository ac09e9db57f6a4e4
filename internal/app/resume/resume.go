package resume

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/moby/sys/atomicwriter"
	"github.com/oklog/ulid/v2"

	"github.com/slok/imagegen/internal/conventions"
	"github.com/slok/imagegen/internal/generator"
	"github.com/slok/imagegen/internal/lock"
	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/shutdown"
	"github.com/slok/imagegen/internal/storage"
)

// ArtifactWriter persists the generated images.
type ArtifactWriter interface {
	WriteArtifact(path string, data []byte) error
}

// ArtifactWriterFunc adapts a function into an ArtifactWriter.
type ArtifactWriterFunc func(path string, data []byte) error

func (f ArtifactWriterFunc) WriteArtifact(path string, data []byte) error { return f(path, data) }

// FSArtifactWriter writes artifacts atomically on the filesystem.
var FSArtifactWriter = ArtifactWriterFunc(func(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}
	return atomicwriter.WriteFile(path, data, 0o644)
})

// ServiceConfig is the configuration for the resume service.
type ServiceConfig struct {
	Engine     generator.Engine
	Lock       lock.Locker
	Repository storage.CheckpointRepository
	// Shutdown is checked before every item, by default never requested.
	Shutdown       shutdown.Signal
	ArtifactWriter ArtifactWriter
	Clock          func() time.Time
	Logger         log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}

	if c.Lock == nil {
		return fmt.Errorf("lock is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Shutdown == nil {
		c.Shutdown = shutdown.Never
	}

	if c.ArtifactWriter == nil {
		c.ArtifactWriter = FSArtifactWriter
	}

	if c.Clock == nil {
		c.Clock = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Resume"})

	return nil
}

// Service drives a checkpointed session until it finishes or a shutdown is requested.
type Service struct {
	engine   generator.Engine
	lock     lock.Locker
	repo     storage.CheckpointRepository
	shutdown shutdown.Signal
	writer   ArtifactWriter
	clock    func() time.Time
	logger   log.Logger
}

// NewService creates a new resume service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		engine:   cfg.Engine,
		lock:     cfg.Lock,
		repo:     cfg.Repository,
		shutdown: cfg.Shutdown,
		writer:   cfg.ArtifactWriter,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the resume request parameters.
type Request struct {
	// SessionID is optional, when set the checkpointed session must match it.
	SessionID string
}

// Run processes the checkpointed session from its cursor.
//
// A context cancellation is handled as a forced shutdown: the in-flight item is not
// recorded and the session is left resumable. Session-level failures (lock, checkpoint)
// abort the run.
func (s *Service) Run(ctx context.Context, req Request) (*model.RunOutcome, error) {
	// The checkpoint is only read while holding the lock, a previous holder may have
	// advanced it until the very moment it released.
	if err := s.lock.Acquire(); err != nil {
		return nil, fmt.Errorf("could not acquire instance lock: %w", err)
	}
	defer s.release()

	session, err := s.repo.GetSession(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("no checkpointed session: %w", model.ErrNoActiveSession)
		}
		return nil, fmt.Errorf("could not load checkpoint: %w", err)
	}

	if req.SessionID != "" && req.SessionID != session.ID {
		return nil, fmt.Errorf("checkpointed session is %q, not %q: %w", session.ID, req.SessionID, model.ErrNoActiveSession)
	}

	if !session.Status.Resumable() {
		return nil, fmt.Errorf("session %s is %s: %w", session.ID, session.Status, model.ErrNoActiveSession)
	}

	logger := s.logger.WithValues(log.Kv{"session-id": session.ID, "run-id": ulid.Make().String()})

	if !session.Finished() {
		if err := s.engine.Load(ctx); err != nil {
			if ctx.Err() != nil {
				logger.Warningf("Interrupted while loading the generation engine")
				return &model.RunOutcome{Session: *session, Interrupted: true}, nil
			}

			session.Status = model.SessionStatusFailed
			session.Error = fmt.Sprintf("could not load generation engine: %s", err)
			if serr := s.repo.SaveSession(ctx, *session); serr != nil {
				logger.Errorf("could not checkpoint failed session: %v", serr)
			}
			return nil, fmt.Errorf("could not load generation engine: %w", err)
		}
		defer func() {
			if err := s.engine.Close(); err != nil {
				logger.Warningf("could not close generation engine: %v", err)
			}
		}()
	}

	if session.Status == model.SessionStatusPending {
		session.Status = model.SessionStatusRunning
		if err := s.checkpoint(ctx, *session); err != nil {
			return nil, err
		}
	}

	logger.Infof("Processing session from item %d/%d", session.Cursor+1, len(session.Items))

	processed := 0
	interrupted := false
	for !session.Finished() {
		if s.shutdown.Requested() || ctx.Err() != nil {
			interrupted = true
			break
		}

		res, ok := s.process(ctx, logger, session)
		if !ok {
			interrupted = true
			break
		}

		if err := session.Record(res); err != nil {
			return nil, fmt.Errorf("could not record item result: %w", err)
		}
		if err := s.checkpoint(ctx, *session); err != nil {
			return nil, err
		}
		processed++
	}

	if interrupted {
		logger.Warningf("Run interrupted at item %d/%d, session can be resumed", session.Cursor+1, len(session.Items))
		return &model.RunOutcome{Session: *session, Interrupted: true, Processed: processed}, nil
	}

	session.Finalize(s.clock())
	if err := s.checkpoint(ctx, *session); err != nil {
		return nil, err
	}

	logger.Infof("Session %s: %d succeeded, %d failed", session.Status, session.CompletedCount, session.FailedCount)
	return &model.RunOutcome{Session: *session, Processed: processed}, nil
}

// process generates the item at the cursor. It returns false when the generation was
// cancelled, in that case nothing must be recorded.
func (s *Service) process(ctx context.Context, logger log.Logger, session *model.Session) (model.ItemResult, bool) {
	idx := session.Cursor
	item := session.Items[idx]
	logger = logger.WithValues(log.Kv{"position": item.Position})
	logger.Infof("[%d/%d] Generating %s", idx+1, len(session.Items), item.Position)

	start := s.clock()
	data, err := s.engine.Generate(ctx, generator.RequestFromItem(item))
	if ctx.Err() != nil {
		return model.ItemResult{}, false
	}
	end := s.clock()

	res := model.ItemResult{
		Index:     idx,
		Position:  item.Position,
		Duration:  end.Sub(start),
		Timestamp: end.UTC(),
	}

	if err == nil {
		path := conventions.ArtifactPath(session.OutputDir, item.Position, end)
		err = s.writeArtifact(path, data)
		res.OutputPath = path
	}

	if err != nil {
		logger.Errorf("[%d/%d] Generation failed: %v", idx+1, len(session.Items), err)
		res.Status = model.ItemStatusFailed
		res.OutputPath = ""
		res.Error = err.Error()
		return res, true
	}

	logger.Infof("[%d/%d] Generated %s in %s", idx+1, len(session.Items), res.OutputPath, res.Duration.Round(time.Millisecond))
	res.Status = model.ItemStatusSuccess
	return res, true
}

func (s *Service) writeArtifact(path string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("engine returned an empty image: %w", model.ErrItemGeneration)
	}

	if err := s.writer.WriteArtifact(path, data); err != nil {
		return fmt.Errorf("could not write image: %w", err)
	}

	return nil
}

// checkpoint persists the session even if the context has been cancelled, a processed
// item must always be recorded.
func (s *Service) checkpoint(ctx context.Context, session model.Session) error {
	if err := s.repo.SaveSession(context.WithoutCancel(ctx), session); err != nil {
		if !errors.Is(err, model.ErrIO) {
			err = fmt.Errorf("%w: %w", model.ErrIO, err)
		}
		return fmt.Errorf("could not checkpoint session: %w", err)
	}

	return nil
}

func (s *Service) release() {
	if err := s.lock.Release(); err != nil {
		s.logger.Errorf("could not release instance lock: %v", err)
	}
}
