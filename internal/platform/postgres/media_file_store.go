package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/kalinov/scribe-api/internal/platform/logger"
	"github.com/kalinov/scribe-api/internal/store"
)

// PostgresMediaFileStore implements the store.MediaFileStore interface
// using a PostgreSQL database as the storage backend.
type PostgresMediaFileStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMediaFileStore creates a new PostgreSQL implementation of the MediaFileStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresMediaFileStore(db store.DBTX, logger *slog.Logger) *PostgresMediaFileStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMediaFileStore{
		db:     db,
		logger: logger.With(slog.String("component", "media_file_store")),
	}
}

// Ensure PostgresMediaFileStore implements store.MediaFileStore interface
var _ store.MediaFileStore = (*PostgresMediaFileStore)(nil)

// WithTx returns a new MediaFileStore instance that uses the provided transaction.
func (s *PostgresMediaFileStore) WithTx(tx *sql.Tx) store.MediaFileStore {
	return &PostgresMediaFileStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.MediaFileStore.Create.
func (s *PostgresMediaFileStore) Create(ctx context.Context, file *domain.MediaFile) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := file.Validate(); err != nil {
		log.Warn("media file validation failed during create",
			slog.String("error", err.Error()),
			slog.String("media_file_id", file.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO media_files (id, user_id, filename, status, current_task_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		file.ID,
		file.UserID,
		file.Filename,
		file.Status,
		file.CurrentTaskID,
		file.CreatedAt,
		file.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create media file",
			slog.String("error", err.Error()),
			slog.String("media_file_id", file.ID.String()))
		return MapError(err)
	}

	return nil
}

// GetByID implements store.MediaFileStore.GetByID.
func (s *PostgresMediaFileStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.MediaFile, error) {
	query := `
		SELECT id, user_id, filename, status, current_task_id, created_at, updated_at
		FROM media_files
		WHERE id = $1
	`
	file, err := scanMediaFile(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, store.ErrMediaFileNotFound
		}
		return nil, MapError(err)
	}
	return file, nil
}

// UpdateStatus implements store.MediaFileStore.UpdateStatus.
// Returns store.ErrMediaFileNotFound if the file does not exist.
func (s *PostgresMediaFileStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.MediaFileStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !status.IsValid() {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidMediaFileStatus)
	}

	query := `
		UPDATE media_files
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update media file status",
			slog.String("media_file_id", id.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.ErrMediaFileNotFound
	}

	return nil
}

// SetCurrentTask implements store.MediaFileStore.SetCurrentTask.
// A nil taskID clears a dangling reference.
func (s *PostgresMediaFileStore) SetCurrentTask(ctx context.Context, id uuid.UUID, taskID *uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE media_files
		SET current_task_id = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, taskID, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to set media file current task",
			slog.String("media_file_id", id.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.ErrMediaFileNotFound
	}

	return nil
}

// FindByStatuses implements store.MediaFileStore.FindByStatuses.
// Oldest updated_at first, so the longest-stalled files surface first.
func (s *PostgresMediaFileStore) FindByStatuses(
	ctx context.Context,
	statuses []domain.MediaFileStatus,
) ([]*domain.MediaFile, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = status
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, filename, status, current_task_id, created_at, updated_at
		FROM media_files
		WHERE status IN (%s)
		ORDER BY updated_at ASC
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query media files by status",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var files []*domain.MediaFile
	for rows.Next() {
		file, err := scanMediaFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media file row: %w", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media file rows: %w", err)
	}

	return files, nil
}

// scanMediaFile reads one media file row into a domain struct.
func scanMediaFile(row rowScanner) (*domain.MediaFile, error) {
	var file domain.MediaFile
	var currentTaskID uuid.NullUUID

	err := row.Scan(
		&file.ID,
		&file.UserID,
		&file.Filename,
		&file.Status,
		&currentTaskID,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if currentTaskID.Valid {
		id := currentTaskID.UUID
		file.CurrentTaskID = &id
	}

	return &file, nil
}
