package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalinov/scribe-api/internal/events"
	"github.com/kalinov/scribe-api/internal/store"
)

// TaskSubmitter accepts tasks for background processing. Satisfied by
// *TaskRunner; an interface so the handler can be tested without one.
type TaskSubmitter interface {
	Submit(ctx context.Context, t Task) error
}

// PipelineEventHandler implements the events.EventHandler interface:
// it converts pipeline stage request events into tasks and submits
// them, chaining the pipeline forward.
type PipelineEventHandler struct {
	factory *PipelineTaskFactory
	runner  TaskSubmitter
	logger  *slog.Logger
}

// NewPipelineEventHandler creates a handler that builds tasks with the
// given factory and submits them to the runner.
func NewPipelineEventHandler(factory *PipelineTaskFactory, runner TaskSubmitter, logger *slog.Logger) *PipelineEventHandler {
	return &PipelineEventHandler{
		factory: factory,
		runner:  runner,
		logger:  logger.With("component", "pipeline_event_handler"),
	}
}

// HandleEvent processes a pipeline task request: non-pipeline event
// types are ignored, and a request for a stage that already has an
// active task is dropped as a duplicate, not an error.
func (h *PipelineEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if !event.Type.IsPipeline() {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload events.PipelineTaskPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal payload",
			"error", err,
			"event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	t, err := h.factory.CreateTask(event.Type, payload.MediaFileID, payload.UserID)
	if err != nil {
		h.logger.Error("failed to create task",
			"error", err,
			"event_type", event.Type,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.runner.Submit(ctx, t); err != nil {
		if errors.Is(err, store.ErrActiveTaskExists) {
			h.logger.Info("stage already has an active task, dropping duplicate request",
				"task_type", event.Type,
				"media_file_id", payload.MediaFileID,
				"event_id", event.ID)
			return nil
		}

		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", t.ID(),
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Info("pipeline task submitted",
		"task_id", t.ID(),
		"task_type", event.Type,
		"media_file_id", payload.MediaFileID,
		"event_id", event.ID)
	return nil
}

// Ensure PipelineEventHandler implements events.EventHandler
var _ events.EventHandler = (*PipelineEventHandler)(nil)
