package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/kalinov/scribe-api/internal/platform/logger"
	"github.com/kalinov/scribe-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a new TaskStore instance that uses the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.TaskStore.Create.
// Returns store.ErrActiveTaskExists when a pending or in-progress task
// already references the same media file for the same task type; the
// partial unique index active_tasks_one_per_file_type enforces this.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.ProcessingTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, user_id, media_file_id, type, status, progress,
		                   error_message, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.UserID,
		task.MediaFileID,
		task.Type,
		task.Status,
		task.Progress,
		nullString(task.ErrorMessage),
		task.CreatedAt,
		task.UpdatedAt,
		task.CompletedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrActiveTaskExists, err)
		}
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProcessingTask, error) {
	query := `
		SELECT id, user_id, media_file_id, type, status, progress,
		       error_message, created_at, updated_at, completed_at
		FROM tasks
		WHERE id = $1
	`
	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return task, nil
}

// UpdateStatus implements store.TaskStore.UpdateStatus.
// An unknown task ID is logged and ignored, by design.
func (s *PostgresTaskStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	errorMessage string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	terminal := status == domain.TaskStatusCompleted || status == domain.TaskStatusFailed
	now := time.Now().UTC()

	var completedAt *time.Time
	if terminal {
		completedAt = &now
	}

	query := `
		UPDATE tasks
		SET status = $1, error_message = $2, completed_at = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := s.db.ExecContext(ctx, query,
		status,
		nullString(errorMessage),
		completedAt,
		now,
		id,
	)
	if err != nil {
		log.Error("failed to update task status",
			slog.String("task_id", id.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		log.Warn("no task found with ID to update status",
			slog.String("task_id", id.String()),
			slog.String("status", string(status)))
		return nil
	}

	return nil
}

// UpdateProgress implements store.TaskStore.UpdateProgress.
// GREATEST keeps progress monotone even if updates arrive out of order.
// An unknown task ID is logged and ignored, by design.
func (s *PostgresTaskStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress float64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if progress < 0 || progress > 1 {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidTaskProgress)
	}

	query := `
		UPDATE tasks
		SET progress = GREATEST(progress, $1), updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := s.db.ExecContext(ctx, query,
		progress,
		time.Now().UTC(),
		id,
		domain.TaskStatusInProgress,
	)
	if err != nil {
		log.Error("failed to update task progress",
			slog.String("task_id", id.String()),
			slog.Float64("progress", progress),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		log.Warn("no running task found with ID to update progress",
			slog.String("task_id", id.String()))
		return nil
	}

	return nil
}

// FindByStatus implements store.TaskStore.FindByStatus.
// Oldest created_at first, so recovery handles the longest-stuck work first.
func (s *PostgresTaskStore) FindByStatus(
	ctx context.Context,
	status domain.TaskStatus,
	updatedBefore time.Time,
) ([]*domain.ProcessingTask, error) {
	var query string
	var args []any

	if !updatedBefore.IsZero() {
		query = `
			SELECT id, user_id, media_file_id, type, status, progress,
			       error_message, created_at, updated_at, completed_at
			FROM tasks
			WHERE status = $1 AND updated_at < $2
			ORDER BY created_at ASC
		`
		args = []any{status, updatedBefore}
	} else {
		query = `
			SELECT id, user_id, media_file_id, type, status, progress,
			       error_message, created_at, updated_at, completed_at
			FROM tasks
			WHERE status = $1
			ORDER BY created_at ASC
		`
		args = []any{status}
	}

	return s.queryTasks(ctx, query, args...)
}

// FindByMediaFile implements store.TaskStore.FindByMediaFile.
// Newest created_at first: the head of the result is the most recent
// task history entry for the file.
func (s *PostgresTaskStore) FindByMediaFile(
	ctx context.Context,
	mediaFileID uuid.UUID,
) ([]*domain.ProcessingTask, error) {
	query := `
		SELECT id, user_id, media_file_id, type, status, progress,
		       error_message, created_at, updated_at, completed_at
		FROM tasks
		WHERE media_file_id = $1
		ORDER BY created_at DESC
	`
	return s.queryTasks(ctx, query, mediaFileID)
}

// CountCompletedRetries implements store.TaskStore.CountCompletedRetries.
func (s *PostgresTaskStore) CountCompletedRetries(
	ctx context.Context,
	mediaFileID uuid.UUID,
	taskType domain.TaskType,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM tasks
		WHERE media_file_id = $1 AND type = $2 AND status = $3
	`
	var count int
	err := s.db.QueryRowContext(ctx, query, mediaFileID, taskType, domain.TaskStatusFailed).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// queryTasks runs a task SELECT and scans the result set.
func (s *PostgresTaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.ProcessingTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.ProcessingTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row into a domain struct.
func scanTask(row rowScanner) (*domain.ProcessingTask, error) {
	var task domain.ProcessingTask
	var errorMessage sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.MediaFileID,
		&task.Type,
		&task.Status,
		&task.Progress,
		&errorMessage,
		&task.CreatedAt,
		&task.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	task.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}

	return &task, nil
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
