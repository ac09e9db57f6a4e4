package history

import (
	"context"
	"fmt"

	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	History storage.HistoryRepository
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.History == nil {
		return fmt.Errorf("history is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.History"})

	return nil
}

// Service queries the archived sessions.
type Service struct {
	history storage.HistoryRepository
	logger  log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		history: cfg.History,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the history request parameters.
type Request struct {
	// ID selects a single archived session, all of them are returned if empty.
	ID string
}

// Run returns the archived sessions, newest first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.ArchivedSession, error) {
	if req.ID != "" {
		a, err := s.history.GetArchivedSession(ctx, req.ID)
		if err != nil {
			return nil, fmt.Errorf("could not get archived session: %w", err)
		}
		return []model.ArchivedSession{*a}, nil
	}

	all, err := s.history.ListArchivedSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list archived sessions: %w", err)
	}

	return all, nil
}
