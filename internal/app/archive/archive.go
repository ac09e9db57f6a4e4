package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/storage"
)

// ServiceConfig is the configuration for the archive service.
type ServiceConfig struct {
	Repository storage.CheckpointRepository
	History    storage.HistoryRepository
	Clock      func() time.Time
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.History == nil {
		return fmt.Errorf("history is required")
	}

	if c.Clock == nil {
		c.Clock = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Archive"})

	return nil
}

// Service stores finished sessions in the history, so they survive the next start.
type Service struct {
	repo    storage.CheckpointRepository
	history storage.HistoryRepository
	clock   func() time.Time
	logger  log.Logger
}

// NewService creates a new archive service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:    cfg.Repository,
		history: cfg.History,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the archive request parameters.
type Request struct{}

// Run archives the checkpointed session. Only sessions in a terminal status can be archived.
func (s *Service) Run(ctx context.Context, req Request) (*model.ArchivedSession, error) {
	session, err := s.repo.GetSession(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("no checkpointed session: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not load checkpoint: %w", err)
	}

	if !session.Status.Terminal() {
		return nil, fmt.Errorf("session %s is %s, only finished sessions can be archived: %w", session.ID, session.Status, model.ErrNotValid)
	}

	archived := model.ArchivedSession{
		ID:         ulid.Make().String(),
		ArchivedAt: s.clock().UTC(),
		Session:    *session,
	}
	if err := s.history.ArchiveSession(ctx, archived); err != nil {
		return nil, fmt.Errorf("could not archive session: %w", err)
	}

	s.logger.Infof("Session %s archived as %s", session.ID, archived.ID)
	return &archived, nil
}
