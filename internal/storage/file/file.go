// Package file implements the checkpoint repository as a single JSON document on disk.
//
// Writes go to a temporary file that is synced and renamed over the checkpoint, so a
// reader never observes a partially written document.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"

	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
)

// RepositoryConfig is the configuration for the file checkpoint repository.
type RepositoryConfig struct {
	// Path is the checkpoint document path.
	Path   string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Path == "" {
		return fmt.Errorf("checkpoint path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.File"})
	return nil
}

// Repository is a JSON file implementation of storage.CheckpointRepository.
type Repository struct {
	path   string
	logger log.Logger
}

// NewRepository creates a new file checkpoint repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		path:   cfg.Path,
		logger: cfg.Logger,
	}, nil
}

// Path returns the checkpoint document path.
func (r *Repository) Path() string { return r.path }

// GetSession loads the checkpointed session.
func (r *Repository) GetSession(ctx context.Context) (*model.Session, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("checkpoint %s: %w", r.path, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not read checkpoint: %w: %w", err, model.ErrIO)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Nothing was ever written.
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("checkpoint %s is empty: %w", r.path, model.ErrNotFound)
	}

	s, err := DecodeSession(data)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", r.path, err)
	}

	return s, nil
}

// SaveSession persists the session atomically.
func (r *Repository) SaveSession(ctx context.Context, s model.Session) error {
	data, err := EncodeSession(s)
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("could not create checkpoint directory: %w: %w", err, model.ErrIO)
	}

	if err := atomicwriter.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("could not write checkpoint: %w: %w", err, model.ErrIO)
	}

	r.logger.Debugf("Saved checkpoint for session %s (cursor %d/%d)", s.ID, s.Cursor, len(s.Items))
	return nil
}
