package storage

import (
	"context"

	"github.com/slok/imagegen/internal/model"
)

// CheckpointRepository is the interface for session checkpoint persistence.
type CheckpointRepository interface {
	// GetSession returns the checkpointed session. It returns model.ErrNotFound when
	// no session has ever been checkpointed and model.ErrCorruptCheckpoint when the
	// checkpoint exists but is not valid.
	GetSession(ctx context.Context) (*model.Session, error)
	// SaveSession persists the session atomically.
	SaveSession(ctx context.Context, s model.Session) error
}

// HistoryRepository is the interface for archived sessions persistence.
type HistoryRepository interface {
	ArchiveSession(ctx context.Context, s model.ArchivedSession) error
	GetArchivedSession(ctx context.Context, id string) (*model.ArchivedSession, error)
	ListArchivedSessions(ctx context.Context) ([]model.ArchivedSession, error)
}
