// Package sqlite implements the archived sessions history on SQLite.
//
// The archived checkpoint is stored with the same document format used by the
// checkpoint file, the other columns are only for listing.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/storage/file"
	"github.com/slok/imagegen/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.HistoryRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// ArchiveSession stores a session snapshot.
func (r *Repository) ArchiveSession(ctx context.Context, a model.ArchivedSession) error {
	if a.ID == "" {
		return fmt.Errorf("archive id is required: %w", model.ErrNotValid)
	}

	doc, err := file.EncodeSession(a.Session)
	if err != nil {
		return fmt.Errorf("could not encode session: %w", err)
	}

	query := `
		INSERT INTO archived_sessions (
			id, session_id, status,
			items, completed_count, failed_count,
			started_at, completed_at, archived_at,
			checkpoint
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		a.ID,
		a.Session.ID,
		a.Session.Status,
		len(a.Session.Items),
		a.Session.CompletedCount,
		a.Session.FailedCount,
		unixPtr(a.Session.StartedAt),
		unixPtr(a.Session.CompletedAt),
		a.ArchivedAt.UnixNano(),
		string(doc),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: archived_sessions.") {
			return fmt.Errorf("archived session %s: %w", a.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert archived session: %w", err)
	}

	r.logger.Debugf("Archived session %s as %s", a.Session.ID, a.ID)
	return nil
}

// GetArchivedSession returns an archived session by its archive ID.
func (r *Repository) GetArchivedSession(ctx context.Context, id string) (*model.ArchivedSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, archived_at, checkpoint FROM archived_sessions WHERE id = ?`, id)

	a, err := scanArchivedSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("archived session %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get archived session: %w", err)
	}

	return a, nil
}

// ListArchivedSessions returns all the archived sessions, newest first.
func (r *Repository) ListArchivedSessions(ctx context.Context) ([]model.ArchivedSession, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, archived_at, checkpoint FROM archived_sessions ORDER BY archived_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("could not list archived sessions: %w", err)
	}
	defer rows.Close()

	archived := []model.ArchivedSession{}
	for rows.Next() {
		a, err := scanArchivedSession(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan archived session: %w", err)
		}
		archived = append(archived, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate archived sessions: %w", err)
	}

	return archived, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArchivedSession(s scanner) (*model.ArchivedSession, error) {
	var (
		id         string
		archivedAt int64
		doc        string
	)
	if err := s.Scan(&id, &archivedAt, &doc); err != nil {
		return nil, err
	}

	session, err := file.DecodeSession([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("archived session %s: %w", id, err)
	}

	return &model.ArchivedSession{
		ID:         id,
		ArchivedAt: time.Unix(0, archivedAt).UTC(),
		Session:    *session,
	}, nil
}

func unixPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	u := t.Unix()
	return &u
}
