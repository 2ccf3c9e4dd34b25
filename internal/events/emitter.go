package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter dispatches task request events to handlers
// registered in the same process. The pipeline runs on it: each stage
// emits the request for the next stage, and the handler side turns the
// request into an enqueued task. Registration and emission are safe for
// concurrent use.
type InMemoryEventEmitter struct {
	mu       sync.RWMutex
	handlers []EventHandler
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates an emitter with no handlers
// registered.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}

	return &InMemoryEventEmitter{
		logger: logger.With(slog.String("component", "event_emitter")),
	}
}

// RegisterHandler subscribes a handler to every subsequently emitted
// event.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
}

// snapshot copies the handler list so dispatch runs without holding the
// lock.
func (e *InMemoryEventEmitter) snapshot() []EventHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]EventHandler(nil), e.handlers...)
}

// EmitEvent delivers the event to every registered handler. A handler
// error never stops delivery to the rest; the first error is returned
// after all handlers have run. Emitting with no handlers registered is
// not an error, but it means nothing will pick up the requested stage,
// so it is logged loudly.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskRequestEvent) error {
	handlers := e.snapshot()

	log := e.logger.With(
		slog.String("event_id", event.ID.String()),
		slog.String("task_type", string(event.Type)))

	if len(handlers) == 0 {
		log.Warn("task request emitted with no handlers registered, stage will not be picked up")
		return nil
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			log.Error("task request handler failed",
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
