package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/domain"
)

// TaskRequestEvent represents a request to create a background task.
// It carries the information needed for task creation without direct
// dependencies on the task package, so services and pipeline stages can
// request follow-up work without importing the runner.
type TaskRequestEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates the task type that should be created
	Type domain.TaskType `json:"type"`

	// Payload contains the task-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// PipelineTaskPayload is the payload carried by every pipeline task
// request: which media file to work on and who owns it.
type PipelineTaskPayload struct {
	MediaFileID uuid.UUID `json:"media_file_id"`
	UserID      uuid.UUID `json:"user_id"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *TaskRequestEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskRequestEvent creates a new TaskRequestEvent with the specified type and payload.
func NewTaskRequestEvent(taskType domain.TaskType, payload interface{}) (*TaskRequestEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &TaskRequestEvent{
		ID:        uuid.New(),
		Type:      taskType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// NewPipelineTaskRequest creates a task request event for the given
// pipeline stage and media file.
func NewPipelineTaskRequest(taskType domain.TaskType, mediaFileID, userID uuid.UUID) (*TaskRequestEvent, error) {
	return NewTaskRequestEvent(taskType, PipelineTaskPayload{
		MediaFileID: mediaFileID,
		UserID:      userID,
	})
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}
