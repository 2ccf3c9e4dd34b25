package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/domain"
)

// TaskStore defines the interface for processing task persistence.
// Version: 1.0
type TaskStore interface {
	// Create saves a new processing task to the store.
	// It handles domain validation internally.
	// Returns ErrActiveTaskExists if a pending or in-progress task already
	// references the same media file for the same task type.
	Create(ctx context.Context, task *domain.ProcessingTask) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ProcessingTask, error)

	// UpdateStatus updates the status and error message of an existing task.
	// Terminal statuses stamp completed_at; non-terminal statuses clear it.
	// An unknown task ID is a logged no-op, by design: a worker must never
	// crash the pipeline over a bookkeeping miss.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus, errorMessage string) error

	// UpdateProgress records forward progress on a running task.
	// Progress never decreases; a lower value leaves the row unchanged.
	// An unknown task ID is a logged no-op.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress float64) error

	// FindByStatus retrieves tasks with the given status, oldest created_at
	// first. If updatedBefore is non-zero, only tasks whose updated_at is
	// older than it are returned.
	FindByStatus(ctx context.Context, status domain.TaskStatus, updatedBefore time.Time) ([]*domain.ProcessingTask, error)

	// FindByMediaFile retrieves all tasks referencing the given media file,
	// newest created_at first.
	FindByMediaFile(ctx context.Context, mediaFileID uuid.UUID) ([]*domain.ProcessingTask, error)

	// CountCompletedRetries returns the number of failed tasks recorded for
	// the given media file and task type, used to enforce the retry limit.
	CountCompletedRetries(ctx context.Context, mediaFileID uuid.UUID, taskType domain.TaskType) (int, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
