package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler captures handled events and returns a configurable error.
type recordingHandler struct {
	events []*TaskRequestEvent
	err    error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *TaskRequestEvent) error {
	h.events = append(h.events, event)
	return h.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInMemoryEventEmitter(t *testing.T) {
	t.Parallel()

	t.Run("dispatches to all handlers", func(t *testing.T) {
		t.Parallel()
		emitter := NewInMemoryEventEmitter(testLogger())
		h1 := &recordingHandler{}
		h2 := &recordingHandler{}
		emitter.RegisterHandler(h1)
		emitter.RegisterHandler(h2)

		event, err := NewPipelineTaskRequest(domain.TaskTypeTranscription, uuid.New(), uuid.New())
		require.NoError(t, err)

		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Len(t, h1.events, 1)
		assert.Len(t, h2.events, 1)
	})

	t.Run("no handlers is not an error", func(t *testing.T) {
		t.Parallel()
		emitter := NewInMemoryEventEmitter(testLogger())

		event, err := NewPipelineTaskRequest(domain.TaskTypeExtractAudio, uuid.New(), uuid.New())
		require.NoError(t, err)

		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
	})

	t.Run("handler error does not stop other handlers", func(t *testing.T) {
		t.Parallel()
		emitter := NewInMemoryEventEmitter(testLogger())
		failing := &recordingHandler{err: errors.New("boom")}
		ok := &recordingHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(ok)

		event, err := NewPipelineTaskRequest(domain.TaskTypeAnalyzeTranscript, uuid.New(), uuid.New())
		require.NoError(t, err)

		err = emitter.EmitEvent(context.Background(), event)
		assert.EqualError(t, err, "boom")
		assert.Len(t, ok.events, 1)
	})
}

func TestPipelineTaskPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	fileID := uuid.New()
	userID := uuid.New()

	event, err := NewPipelineTaskRequest(domain.TaskTypeSummarizeTranscript, fileID, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeSummarizeTranscript, event.Type)
	assert.NotEqual(t, uuid.Nil, event.ID)

	var payload PipelineTaskPayload
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, fileID, payload.MediaFileID)
	assert.Equal(t, userID, payload.UserID)
}
