package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/platform/logger"
	"github.com/kalinov/scribe-api/internal/store"
)

// PostgresArtifactStore implements the store.ArtifactStore interface
// using a PostgreSQL database as the storage backend.
type PostgresArtifactStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresArtifactStore creates a new PostgreSQL implementation of the ArtifactStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresArtifactStore(db store.DBTX, logger *slog.Logger) *PostgresArtifactStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresArtifactStore{
		db:     db,
		logger: logger.With(slog.String("component", "artifact_store")),
	}
}

// Ensure PostgresArtifactStore implements store.ArtifactStore interface
var _ store.ArtifactStore = (*PostgresArtifactStore)(nil)

// WithTx returns a new ArtifactStore instance that uses the provided transaction.
func (s *PostgresArtifactStore) WithTx(tx *sql.Tx) store.ArtifactStore {
	return &PostgresArtifactStore{
		db:     tx,
		logger: s.logger,
	}
}

// Save implements store.ArtifactStore.Save as an upsert.
func (s *PostgresArtifactStore) Save(ctx context.Context, mediaFileID uuid.UUID, kind store.ArtifactKind, content string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO artifacts (media_file_id, kind, content, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (media_file_id, kind)
		DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, mediaFileID, string(kind), content, time.Now().UTC())
	if err != nil {
		log.Error("failed to save artifact",
			slog.String("media_file_id", mediaFileID.String()),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// Get implements store.ArtifactStore.Get.
// Returns store.ErrArtifactNotFound if no artifact of the kind exists.
func (s *PostgresArtifactStore) Get(ctx context.Context, mediaFileID uuid.UUID, kind store.ArtifactKind) (string, error) {
	query := `SELECT content FROM artifacts WHERE media_file_id = $1 AND kind = $2`

	var content string
	err := s.db.QueryRowContext(ctx, query, mediaFileID, string(kind)).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrArtifactNotFound
		}
		return "", MapError(err)
	}

	return content, nil
}
