package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a processing task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Common validation errors for ProcessingTask
var (
	ErrEmptyTaskID          = errors.New("task ID cannot be empty")
	ErrEmptyTaskUserID      = errors.New("task user ID cannot be empty")
	ErrEmptyTaskMediaFileID = errors.New("task media file ID cannot be empty")
	ErrInvalidTaskType      = errors.New("invalid task type")
	ErrInvalidTaskStatus    = errors.New("invalid task status")
	ErrInvalidTaskProgress  = errors.New("task progress must be between 0 and 1")
	ErrProgressNotMonotonic = errors.New("task progress cannot decrease")
	ErrTaskNotRunning       = errors.New("task is not in progress")
	ErrTaskAlreadyTerminal  = errors.New("task is already in a terminal state")
	ErrEmptyTaskError       = errors.New("failed task requires an error message")
)

// ProcessingTask is the durable record of one asynchronous pipeline
// job. Its ID doubles as the queue job id. Invariants:
//   - Progress is monotonically non-decreasing while in progress.
//   - CompletedAt is set if and only if the status is terminal.
//   - ErrorMessage is non-empty if and only if the status is failed.
type ProcessingTask struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	MediaFileID  uuid.UUID  `json:"media_file_id"`
	Type         TaskType   `json:"type"`
	Status       TaskStatus `json:"status"`
	Progress     float64    `json:"progress"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewProcessingTask creates a new pending task with zero progress.
// Returns an error if validation fails.
func NewProcessingTask(userID, mediaFileID uuid.UUID, taskType TaskType) (*ProcessingTask, error) {
	now := time.Now().UTC()
	t := &ProcessingTask{
		ID:          uuid.New(),
		UserID:      userID,
		MediaFileID: mediaFileID,
		Type:        taskType,
		Status:      TaskStatusPending,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks the task's fields and cross-field invariants.
func (t *ProcessingTask) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.UserID == uuid.Nil {
		return ErrEmptyTaskUserID
	}

	if t.MediaFileID == uuid.Nil {
		return ErrEmptyTaskMediaFileID
	}

	if !t.Type.IsValid() {
		return ErrInvalidTaskType
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if t.Progress < 0 || t.Progress > 1 {
		return ErrInvalidTaskProgress
	}

	if t.IsTerminal() != (t.CompletedAt != nil) {
		return ErrInvalidTaskStatus
	}

	if (t.Status == TaskStatusFailed) != (t.ErrorMessage != "") {
		return ErrInvalidTaskStatus
	}

	return nil
}

// IsTerminal reports whether the task has reached a final state.
func (t *ProcessingTask) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// Start transitions a pending task to in progress.
func (t *ProcessingTask) Start() error {
	if t.IsTerminal() {
		return ErrTaskAlreadyTerminal
	}

	t.Status = TaskStatusInProgress
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateProgress records forward progress on a running task. Progress
// never moves backwards; a lower value is rejected.
func (t *ProcessingTask) UpdateProgress(progress float64) error {
	if t.Status != TaskStatusInProgress {
		return ErrTaskNotRunning
	}

	if progress < 0 || progress > 1 {
		return ErrInvalidTaskProgress
	}

	if progress < t.Progress {
		return ErrProgressNotMonotonic
	}

	t.Progress = progress
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkCompleted moves the task to the completed terminal state,
// setting progress to 1 and stamping CompletedAt.
func (t *ProcessingTask) MarkCompleted() error {
	if t.IsTerminal() {
		return ErrTaskAlreadyTerminal
	}

	now := time.Now().UTC()
	t.Status = TaskStatusCompleted
	t.Progress = 1
	t.ErrorMessage = ""
	t.UpdatedAt = now
	t.CompletedAt = &now
	return nil
}

// MarkFailed moves the task to the failed terminal state with the
// given error message and stamps CompletedAt.
func (t *ProcessingTask) MarkFailed(errMsg string) error {
	if t.IsTerminal() {
		return ErrTaskAlreadyTerminal
	}

	if errMsg == "" {
		return ErrEmptyTaskError
	}

	now := time.Now().UTC()
	t.Status = TaskStatusFailed
	t.ErrorMessage = errMsg
	t.UpdatedAt = now
	t.CompletedAt = &now
	return nil
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}
