package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MediaFileStatus represents the pipeline stage of a media file.
type MediaFileStatus string

// Possible media file status values, in pipeline order. The
// *ing statuses are in-flight stages: a file should only hold one
// while a corresponding task is pending or in progress.
const (
	MediaFileStatusUploaded        MediaFileStatus = "uploaded"
	MediaFileStatusExtractingAudio MediaFileStatus = "extracting_audio"
	MediaFileStatusAudioExtracted  MediaFileStatus = "audio_extracted"
	MediaFileStatusTranscribing    MediaFileStatus = "transcribing"
	MediaFileStatusTranscribed     MediaFileStatus = "transcribed"
	MediaFileStatusAnalyzing       MediaFileStatus = "analyzing"
	MediaFileStatusAnalyzed        MediaFileStatus = "analyzed"
	MediaFileStatusSummarizing     MediaFileStatus = "summarizing"
	MediaFileStatusSummarized      MediaFileStatus = "summarized"
	MediaFileStatusError           MediaFileStatus = "error"
)

// Common validation errors for MediaFile
var (
	ErrEmptyMediaFileID       = errors.New("media file ID cannot be empty")
	ErrEmptyMediaFileUserID   = errors.New("media file user ID cannot be empty")
	ErrEmptyMediaFileName     = errors.New("media file name cannot be empty")
	ErrInvalidMediaFileStatus = errors.New("invalid media file status")
)

// inFlightTaskTypes maps each in-flight stage to the task type expected
// to be driving it. Inverse of TaskType.ActiveStage.
var inFlightTaskTypes = map[MediaFileStatus]TaskType{
	MediaFileStatusExtractingAudio: TaskTypeExtractAudio,
	MediaFileStatusTranscribing:    TaskTypeTranscription,
	MediaFileStatusAnalyzing:       TaskTypeAnalyzeTranscript,
	MediaFileStatusSummarizing:     TaskTypeSummarizeTranscript,
}

// MediaFile represents a media entity moving through the processing
// pipeline. Its status is a pipeline stage independent of any single
// task; CurrentTaskID references the task currently driving an
// in-flight stage, if any.
type MediaFile struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Filename      string          `json:"filename"`
	Status        MediaFileStatus `json:"status"`
	CurrentTaskID *uuid.UUID      `json:"current_task_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewMediaFile creates a new MediaFile in the uploaded stage.
// Returns an error if validation fails.
func NewMediaFile(userID uuid.UUID, filename string) (*MediaFile, error) {
	now := time.Now().UTC()
	f := &MediaFile{
		ID:        uuid.New(),
		UserID:    userID,
		Filename:  filename,
		Status:    MediaFileStatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return f, nil
}

// Validate checks if the MediaFile has valid data.
func (f *MediaFile) Validate() error {
	if f.ID == uuid.Nil {
		return ErrEmptyMediaFileID
	}

	if f.UserID == uuid.Nil {
		return ErrEmptyMediaFileUserID
	}

	if f.Filename == "" {
		return ErrEmptyMediaFileName
	}

	if !f.Status.IsValid() {
		return ErrInvalidMediaFileStatus
	}

	return nil
}

// UpdateStatus sets the file's stage and refreshes UpdatedAt.
// Returns an error if the new status is invalid.
func (f *MediaFile) UpdateStatus(status MediaFileStatus) error {
	if !status.IsValid() {
		return ErrInvalidMediaFileStatus
	}

	f.Status = status
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// IsValid checks if the given status is a declared MediaFileStatus.
func (s MediaFileStatus) IsValid() bool {
	switch s {
	case MediaFileStatusUploaded, MediaFileStatusExtractingAudio,
		MediaFileStatusAudioExtracted, MediaFileStatusTranscribing,
		MediaFileStatusTranscribed, MediaFileStatusAnalyzing,
		MediaFileStatusAnalyzed, MediaFileStatusSummarizing,
		MediaFileStatusSummarized, MediaFileStatusError:
		return true
	default:
		return false
	}
}

// IsInFlight reports whether the status is an in-flight pipeline stage,
// meaning an active task should exist for the file.
func (s MediaFileStatus) IsInFlight() bool {
	_, ok := inFlightTaskTypes[s]
	return ok
}

// InFlightTaskType returns the task type expected to be driving this
// in-flight stage. ok is false for stable stages.
func (s MediaFileStatus) InFlightTaskType() (TaskType, bool) {
	t, ok := inFlightTaskTypes[s]
	return t, ok
}

// RollbackStage returns the last stable stage before this in-flight
// stage, so a stalled file can be returned to a retryable state.
// ok is false when the status is not in-flight.
func (s MediaFileStatus) RollbackStage() (MediaFileStatus, bool) {
	t, ok := inFlightTaskTypes[s]
	if !ok {
		return "", false
	}
	prior, ok := t.PriorStage()
	return prior, ok
}
