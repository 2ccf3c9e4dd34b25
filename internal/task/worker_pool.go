package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/kalinov/scribe-api/internal/store"
)

// WorkerPool manages a pool of worker goroutines that process tasks
// from a task queue. Workers own their record's lifecycle: they mark it
// in progress before executing and write the terminal status when done.
// A failure is a value written to the record, never a crash.
type WorkerPool struct {
	// taskQueue provides read access to the tasks to be processed
	taskQueue TaskQueueReader

	// tasks persists task status transitions
	tasks store.TaskStore

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// ctx is used for cancellation and shutdown signaling
	ctx context.Context

	// cancel is the function to call to cancel the context
	cancel context.CancelFunc

	// logger for structured logging
	logger *slog.Logger
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(taskQueue TaskQueueReader, tasks store.TaskStore, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		taskQueue:   taskQueue,
		tasks:       tasks,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info("worker pool started", "worker_count", p.workerCount)
}

// Stop signals all workers to finish their current task and exit, then
// waits for them.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker consumes tasks until the queue closes or the pool is stopped.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return

		case t, ok := <-p.taskQueue.GetChannel():
			if !ok {
				p.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}

			p.processTask(t, id)
		}
	}
}

// processTask handles execution of a single task, converting any panic
// into a failed record so one bad task never takes a worker down.
func (p *WorkerPool) processTask(t Task, workerID int) {
	ctx := p.ctx
	log := p.logger.With(
		"task_id", t.ID(),
		"task_type", t.Type(),
		"worker_id", workerID,
	)

	if err := p.tasks.UpdateStatus(ctx, t.ID(), domain.TaskStatusInProgress, ""); err != nil {
		log.Error("failed to update task status to in_progress", "error", err)
		return
	}

	log.Info("processing task")

	err := p.execute(ctx, t, log)
	if err != nil {
		log.Error("task execution failed", "error", err)
		if updateErr := p.tasks.UpdateStatus(ctx, t.ID(), domain.TaskStatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to update task status to failed", "error", updateErr)
		}
		return
	}

	log.Info("task completed successfully")
	if updateErr := p.tasks.UpdateStatus(ctx, t.ID(), domain.TaskStatusCompleted, ""); updateErr != nil {
		log.Error("failed to update task status to completed", "error", updateErr)
	}
}

// execute runs the task, recovering panics into errors.
func (p *WorkerPool) execute(ctx context.Context, t Task, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "panic", r)
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return t.Execute(ctx)
}
