package task

import (
	"context"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/domain"
)

// Task represents a unit of background work to be processed
// Version: 1.0
type Task interface {
	// ID returns the task's unique identifier. It doubles as the ID of
	// the durable ProcessingTask record tracking this work.
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() domain.TaskType

	// UserID returns the ID of the user the work belongs to
	UserID() uuid.UUID

	// MediaFileID returns the ID of the media file the work operates on
	MediaFileID() uuid.UUID

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// TaskQueueReader provides read-only access to the task channel
// allowing workers to consume tasks without the ability to enqueue
// Version: 1.0
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// TaskQueueWriter provides write access to the task queue
// allowing services to enqueue tasks for processing
// Version: 1.0
type TaskQueueWriter interface {
	// Enqueue adds a task to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// TaskFactory rebuilds an executable Task from its durable record, so
// work persisted before a restart can be requeued.
// Version: 1.0
type TaskFactory interface {
	// CreateFromRecord builds the Task matching the record's type.
	// Returns an error for task types the factory does not handle.
	CreateFromRecord(rec *domain.ProcessingTask) (Task, error)
}
