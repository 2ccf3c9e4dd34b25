package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/kalinov/scribe-api/internal/store"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// TaskRunner manages background task processing: it persists a durable
// record for every submitted task, feeds the in-memory queue, and owns
// the worker pool draining it. Detection and repair of tasks that stop
// making progress is not its job; the recovery engine scans the same
// records independently.
type TaskRunner struct {
	tasks   store.TaskStore
	queue   *TaskQueue
	pool    *WorkerPool
	factory TaskFactory
	logger  *slog.Logger
}

// NewTaskRunner creates a new TaskRunner. factory is used to rebuild
// queued work from pending records at startup; it may be nil when
// requeueing is not wanted.
func NewTaskRunner(tasks store.TaskStore, factory TaskFactory, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	queue := NewTaskQueue(config.QueueSize, logger)
	pool := NewWorkerPool(queue, tasks, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger)

	return &TaskRunner{
		tasks:   tasks,
		queue:   queue,
		pool:    pool,
		factory: factory,
		logger:  logger,
	}
}

// Submit persists a durable record for the task and enqueues it.
// Returns store.ErrActiveTaskExists when a pending or in-progress task
// of the same type already references the media file.
//
// If the queue is full after the record is created, the record is left
// pending: the orphan scan picks it up rather than losing the work.
func (r *TaskRunner) Submit(ctx context.Context, t Task) error {
	now := time.Now().UTC()
	rec := &domain.ProcessingTask{
		ID:          t.ID(),
		UserID:      t.UserID(),
		MediaFileID: t.MediaFileID(),
		Type:        t.Type(),
		Status:      domain.TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.tasks.Create(ctx, rec); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(t); err != nil {
		r.logger.Error("failed to enqueue task after saving record",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", err)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// Start requeues pending records from previous runs and launches the
// worker pool.
func (r *TaskRunner) Start(ctx context.Context) error {
	if err := r.RequeuePending(ctx); err != nil {
		return fmt.Errorf("failed to requeue pending tasks: %w", err)
	}

	r.pool.Start()
	return nil
}

// Stop gracefully shuts down the task runner.
func (r *TaskRunner) Stop() {
	r.pool.Stop()
	r.queue.Close()
}

// RequeuePending rebuilds executable tasks from pending records and
// enqueues them. Records that cannot be rebuilt or enqueued are left
// pending for the orphan scan.
func (r *TaskRunner) RequeuePending(ctx context.Context) error {
	if r.factory == nil {
		return nil
	}

	pending, err := r.tasks.FindByStatus(ctx, domain.TaskStatusPending, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to load pending tasks: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	r.logger.Info("requeueing pending tasks", "count", len(pending))

	for _, rec := range pending {
		t, err := r.factory.CreateFromRecord(rec)
		if err != nil {
			r.logger.Error("failed to rebuild pending task",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}

		if err := r.queue.Enqueue(t); err != nil {
			r.logger.Error("failed to requeue pending task",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
		}
	}

	return nil
}
