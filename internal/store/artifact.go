package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// ArtifactKind names one pipeline output stored for a media file.
type ArtifactKind string

// Possible artifact kinds, one per pipeline stage output.
const (
	ArtifactAudio      ArtifactKind = "audio"
	ArtifactTranscript ArtifactKind = "transcript"
	ArtifactAnalysis   ArtifactKind = "analysis"
	ArtifactSummary    ArtifactKind = "summary"
)

// ArtifactStore persists pipeline stage outputs keyed by media file and
// kind. Each stage reads its predecessor's artifact and writes its own.
// Version: 1.0
type ArtifactStore interface {
	// Save stores the artifact content, overwriting any previous content
	// of the same kind for the media file.
	Save(ctx context.Context, mediaFileID uuid.UUID, kind ArtifactKind, content string) error

	// Get retrieves the artifact content.
	// Returns ErrArtifactNotFound if no artifact of the kind exists.
	Get(ctx context.Context, mediaFileID uuid.UUID, kind ArtifactKind) (string, error)

	// WithTx returns a new ArtifactStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ArtifactStore
}
