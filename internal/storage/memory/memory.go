package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.CheckpointRepository and
// storage.HistoryRepository.
type Repository struct {
	session  *model.Session
	archived map[string]model.ArchivedSession
	mu       sync.RWMutex
	logger   log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		archived: make(map[string]model.ArchivedSession),
		logger:   cfg.Logger,
	}, nil
}

// GetSession returns the checkpointed session.
func (r *Repository) GetSession(ctx context.Context) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.session == nil {
		return nil, fmt.Errorf("checkpoint: %w", model.ErrNotFound)
	}

	s := copySession(*r.session)
	return &s, nil
}

// SaveSession stores the session replacing the previous one.
func (r *Repository) SaveSession(ctx context.Context, s model.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sc := copySession(s)
	r.session = &sc
	r.logger.Debugf("Saved session in repository: %s", s.ID)

	return nil
}

// ArchiveSession stores a session snapshot in the history.
func (r *Repository) ArchiveSession(ctx context.Context, a model.ArchivedSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.archived[a.ID]; ok {
		return fmt.Errorf("archived session %s: %w", a.ID, model.ErrAlreadyExists)
	}

	a.Session = copySession(a.Session)
	r.archived[a.ID] = a
	r.logger.Debugf("Archived session in repository: %s", a.ID)

	return nil
}

// GetArchivedSession returns an archived session by ID.
func (r *Repository) GetArchivedSession(ctx context.Context, id string) (*model.ArchivedSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.archived[id]
	if !ok {
		return nil, fmt.Errorf("archived session %s: %w", id, model.ErrNotFound)
	}

	a.Session = copySession(a.Session)
	return &a, nil
}

// ListArchivedSessions returns the archived sessions, newest first.
func (r *Repository) ListArchivedSessions(ctx context.Context) ([]model.ArchivedSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]model.ArchivedSession, 0, len(r.archived))
	for _, a := range r.archived {
		a.Session = copySession(a.Session)
		list = append(list, a)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].ArchivedAt.After(list[j].ArchivedAt)
	})

	return list, nil
}

func copySession(s model.Session) model.Session {
	s.Items = append([]model.WorkItem{}, s.Items...)
	s.Results = append([]model.ItemResult{}, s.Results...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		s.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		s.CompletedAt = &t
	}
	return s
}
