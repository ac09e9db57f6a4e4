package start

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/imagegen/internal/lock"
	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/storage"
)

// ServiceConfig is the configuration for the start service.
type ServiceConfig struct {
	Lock       lock.Locker
	Repository storage.CheckpointRepository
	// History is only required to archive the previous session.
	History storage.HistoryRepository
	// OutputBaseDir is where session output directories are created when the
	// request doesn't set one.
	OutputBaseDir string
	Clock         func() time.Time
	Logger        log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Lock == nil {
		return fmt.Errorf("lock is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.OutputBaseDir == "" {
		return fmt.Errorf("output base dir is required")
	}

	if c.Clock == nil {
		c.Clock = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Start"})

	return nil
}

// Service initializes generation sessions.
type Service struct {
	lock    lock.Locker
	repo    storage.CheckpointRepository
	history storage.HistoryRepository
	outDir  string
	clock   func() time.Time
	logger  log.Logger
}

// NewService creates a new start service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		lock:    cfg.Lock,
		repo:    cfg.Repository,
		history: cfg.History,
		outDir:  cfg.OutputBaseDir,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the start request parameters.
type Request struct {
	SessionID string
	Items     []model.WorkItem
	// OutputDir is optional, by default a session directory on the output base dir.
	OutputDir string
	// Defaults are applied to the unset item parameters, on top of the global defaults.
	Defaults model.GenerationParameters
	// ArchivePrevious stores a terminal previous session in the history before
	// overwriting it.
	ArchivePrevious bool
}

func (r *Request) validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("session id is required")
	}

	return nil
}

// Run acquires the instance lock and checkpoints a new pending session. The lock is
// kept, processing the session is up to the resume service.
func (s *Service) Run(ctx context.Context, req Request) (*model.Session, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w: %w", err, model.ErrNotValid)
	}

	items := normalizeItems(req.Items, req.Defaults)
	if err := model.ValidateItems(items); err != nil {
		return nil, fmt.Errorf("invalid work items: %w", err)
	}

	if err := s.lock.Acquire(); err != nil {
		return nil, fmt.Errorf("could not acquire instance lock: %w", err)
	}

	session, err := s.start(ctx, req, items)
	if err != nil {
		if rerr := s.lock.Release(); rerr != nil {
			s.logger.Warningf("could not release instance lock: %v", rerr)
		}
		return nil, err
	}

	s.logger.Infof("Session %s started with %d items (output: %s)", session.ID, len(session.Items), session.OutputDir)
	return session, nil
}

func (s *Service) start(ctx context.Context, req Request, items []model.WorkItem) (*model.Session, error) {
	if req.ArchivePrevious {
		if err := s.archivePrevious(ctx); err != nil {
			return nil, err
		}
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(s.outDir, req.SessionID)
	}

	session := model.NewSession(req.SessionID, outputDir, items, s.clock())
	if err := s.repo.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("could not checkpoint session: %w", err)
	}

	return &session, nil
}

func (s *Service) archivePrevious(ctx context.Context) error {
	if s.history == nil {
		return fmt.Errorf("history is not configured, can't archive previous session: %w", model.ErrNotValid)
	}

	prev, err := s.repo.GetSession(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("could not get previous session: %w", err)
	}

	if !prev.Status.Terminal() {
		s.logger.Warningf("Previous session %s is %s, not archived", prev.ID, prev.Status)
		return nil
	}

	archived := model.ArchivedSession{
		ID:         ulid.Make().String(),
		ArchivedAt: s.clock().UTC(),
		Session:    *prev,
	}
	if err := s.history.ArchiveSession(ctx, archived); err != nil {
		return fmt.Errorf("could not archive previous session: %w", err)
	}
	s.logger.Infof("Previous session %s archived as %s", prev.ID, archived.ID)

	return nil
}

func normalizeItems(items []model.WorkItem, defaults model.GenerationParameters) []model.WorkItem {
	defaults = defaults.WithDefaults(model.DefaultGenerationParameters())

	normalized := make([]model.WorkItem, 0, len(items))
	for _, it := range items {
		it.Parameters = it.Parameters.WithDefaults(defaults)
		normalized = append(normalized, it)
	}

	return normalized
}
