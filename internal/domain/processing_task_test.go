package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewProcessingTask(t *testing.T) {
	t.Parallel() // Enable parallel execution
	userID := uuid.New()
	fileID := uuid.New()

	task, err := NewProcessingTask(userID, fileID, TaskTypeTranscription)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if task.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if task.UserID != userID {
		t.Errorf("Expected user ID %s, got %s", userID, task.UserID)
	}

	if task.MediaFileID != fileID {
		t.Errorf("Expected media file ID %s, got %s", fileID, task.MediaFileID)
	}

	if task.Status != TaskStatusPending {
		t.Errorf("Expected status %s, got %s", TaskStatusPending, task.Status)
	}

	if task.Progress != 0 {
		t.Errorf("Expected zero progress, got %f", task.Progress)
	}

	if task.CompletedAt != nil {
		t.Error("Expected nil CompletedAt for a pending task")
	}

	if task.CreatedAt.IsZero() {
		t.Error("Expected non-zero CreatedAt time")
	}

	// Test invalid userID
	_, err = NewProcessingTask(uuid.Nil, fileID, TaskTypeTranscription)
	if !errors.Is(err, ErrEmptyTaskUserID) {
		t.Errorf("Expected error %v, got %v", ErrEmptyTaskUserID, err)
	}

	// Test invalid task type
	_, err = NewProcessingTask(userID, fileID, TaskType("reticulate_splines"))
	if !errors.Is(err, ErrInvalidTaskType) {
		t.Errorf("Expected error %v, got %v", ErrInvalidTaskType, err)
	}
}

func TestProcessingTaskProgress(t *testing.T) {
	t.Parallel()
	task, err := NewProcessingTask(uuid.New(), uuid.New(), TaskTypeExtractAudio)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Progress updates require the task to be running
	if err := task.UpdateProgress(0.5); !errors.Is(err, ErrTaskNotRunning) {
		t.Errorf("Expected error %v, got %v", ErrTaskNotRunning, err)
	}

	if err := task.Start(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if task.Status != TaskStatusInProgress {
		t.Errorf("Expected status %s, got %s", TaskStatusInProgress, task.Status)
	}

	if err := task.UpdateProgress(0.5); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	// Progress never moves backwards
	if err := task.UpdateProgress(0.4); !errors.Is(err, ErrProgressNotMonotonic) {
		t.Errorf("Expected error %v, got %v", ErrProgressNotMonotonic, err)
	}

	if task.Progress != 0.5 {
		t.Errorf("Expected progress 0.5 after rejected update, got %f", task.Progress)
	}

	if err := task.UpdateProgress(1.5); !errors.Is(err, ErrInvalidTaskProgress) {
		t.Errorf("Expected error %v, got %v", ErrInvalidTaskProgress, err)
	}
}

func TestProcessingTaskTerminalStates(t *testing.T) {
	t.Parallel()

	t.Run("completed sets completed_at and clears error", func(t *testing.T) {
		t.Parallel()
		task, _ := NewProcessingTask(uuid.New(), uuid.New(), TaskTypeTranscription)
		_ = task.Start()

		if err := task.MarkCompleted(); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		if task.Status != TaskStatusCompleted {
			t.Errorf("Expected status %s, got %s", TaskStatusCompleted, task.Status)
		}

		if task.CompletedAt == nil {
			t.Error("Expected CompletedAt to be set")
		}

		if task.ErrorMessage != "" {
			t.Errorf("Expected empty error message, got %q", task.ErrorMessage)
		}

		if task.Progress != 1 {
			t.Errorf("Expected progress 1, got %f", task.Progress)
		}

		if err := task.Validate(); err != nil {
			t.Errorf("Expected valid task, got %v", err)
		}
	})

	t.Run("failed requires an error message", func(t *testing.T) {
		t.Parallel()
		task, _ := NewProcessingTask(uuid.New(), uuid.New(), TaskTypeTranscription)
		_ = task.Start()

		if err := task.MarkFailed(""); !errors.Is(err, ErrEmptyTaskError) {
			t.Errorf("Expected error %v, got %v", ErrEmptyTaskError, err)
		}

		if err := task.MarkFailed("provider timed out"); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		if task.Status != TaskStatusFailed {
			t.Errorf("Expected status %s, got %s", TaskStatusFailed, task.Status)
		}

		if task.CompletedAt == nil {
			t.Error("Expected CompletedAt to be set")
		}

		if err := task.Validate(); err != nil {
			t.Errorf("Expected valid task, got %v", err)
		}
	})

	t.Run("terminal tasks reject further transitions", func(t *testing.T) {
		t.Parallel()
		task, _ := NewProcessingTask(uuid.New(), uuid.New(), TaskTypeTranscription)
		_ = task.Start()
		_ = task.MarkCompleted()

		if err := task.MarkFailed("too late"); !errors.Is(err, ErrTaskAlreadyTerminal) {
			t.Errorf("Expected error %v, got %v", ErrTaskAlreadyTerminal, err)
		}

		if err := task.Start(); !errors.Is(err, ErrTaskAlreadyTerminal) {
			t.Errorf("Expected error %v, got %v", ErrTaskAlreadyTerminal, err)
		}
	})
}

func TestProcessingTaskValidateInvariants(t *testing.T) {
	t.Parallel()
	task, _ := NewProcessingTask(uuid.New(), uuid.New(), TaskTypeTranscription)

	// completed status without CompletedAt violates the terminal invariant
	task.Status = TaskStatusCompleted
	if err := task.Validate(); !errors.Is(err, ErrInvalidTaskStatus) {
		t.Errorf("Expected error %v, got %v", ErrInvalidTaskStatus, err)
	}

	// failed status without an error message violates the error invariant
	task2, _ := NewProcessingTask(uuid.New(), uuid.New(), TaskTypeTranscription)
	now := task2.CreatedAt
	task2.Status = TaskStatusFailed
	task2.CompletedAt = &now
	if err := task2.Validate(); !errors.Is(err, ErrInvalidTaskStatus) {
		t.Errorf("Expected error %v, got %v", ErrInvalidTaskStatus, err)
	}
}
