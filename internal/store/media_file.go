package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/domain"
)

// MediaFileStore defines the interface for media file persistence.
// Version: 1.0
type MediaFileStore interface {
	// Create saves a new media file to the store.
	// It handles domain validation internally.
	Create(ctx context.Context, file *domain.MediaFile) error

	// GetByID retrieves a media file by its unique ID.
	// Returns ErrMediaFileNotFound if the file does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MediaFile, error)

	// UpdateStatus updates the pipeline stage of an existing media file.
	// Returns ErrMediaFileNotFound if the file does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MediaFileStatus) error

	// SetCurrentTask records which task is driving the file's in-flight
	// stage. A nil taskID clears the reference.
	// Returns ErrMediaFileNotFound if the file does not exist.
	SetCurrentTask(ctx context.Context, id uuid.UUID, taskID *uuid.UUID) error

	// FindByStatuses retrieves media files whose status is one of the given
	// stages, oldest updated_at first.
	FindByStatuses(ctx context.Context, statuses []domain.MediaFileStatus) ([]*domain.MediaFile, error)

	// WithTx returns a new MediaFileStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) MediaFileStore
}
