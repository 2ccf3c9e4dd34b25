package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/kalinov/scribe-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForStatus polls the store until the task reaches the wanted
// status or the timeout expires.
func waitForStatus(t *testing.T, tasks *memTaskStore, id uuid.UUID, want domain.TaskStatus) *domain.ProcessingTask {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("task %s never reached status %s", id, want)
			return nil
		case <-time.After(5 * time.Millisecond):
			if rec := tasks.get(id); rec != nil && rec.Status == want {
				return rec
			}
		}
	}
}

func TestTaskRunnerSubmit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("persists a pending record before enqueueing", func(t *testing.T) {
		t.Parallel()
		tasks := newMemTaskStore()
		runner := NewTaskRunner(tasks, nil, DefaultTaskRunnerConfig(), testLogger())

		mt := newMockTask()
		require.NoError(t, runner.Submit(ctx, mt))

		rec := tasks.get(mt.ID())
		require.NotNil(t, rec)
		assert.Equal(t, domain.TaskStatusPending, rec.Status)
		assert.Equal(t, mt.Type(), rec.Type)
		assert.Equal(t, mt.MediaFileID(), rec.MediaFileID)
	})

	t.Run("rejects a second active task for the same file and type", func(t *testing.T) {
		t.Parallel()
		tasks := newMemTaskStore()
		runner := NewTaskRunner(tasks, nil, DefaultTaskRunnerConfig(), testLogger())

		first := newMockTask()
		require.NoError(t, runner.Submit(ctx, first))

		dup := newMockTask()
		dup.mediaFileID = first.mediaFileID

		err := runner.Submit(ctx, dup)
		assert.ErrorIs(t, err, store.ErrActiveTaskExists)
	})

	t.Run("full queue surfaces an error and leaves the record pending", func(t *testing.T) {
		t.Parallel()
		tasks := newMemTaskStore()
		cfg := DefaultTaskRunnerConfig()
		cfg.QueueSize = 1
		runner := NewTaskRunner(tasks, nil, cfg, testLogger())

		require.NoError(t, runner.Submit(ctx, newMockTask()))

		overflow := newMockTask()
		err := runner.Submit(ctx, overflow)
		require.ErrorIs(t, err, ErrQueueFull)

		rec := tasks.get(overflow.ID())
		require.NotNil(t, rec)
		assert.Equal(t, domain.TaskStatusPending, rec.Status)
	})
}

func TestTaskRunnerProcessing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("successful task ends completed", func(t *testing.T) {
		t.Parallel()
		tasks := newMemTaskStore()
		runner := NewTaskRunner(tasks, nil, DefaultTaskRunnerConfig(), testLogger())
		require.NoError(t, runner.Start(ctx))
		defer runner.Stop()

		mt := newMockTask()
		require.NoError(t, runner.Submit(ctx, mt))

		rec := waitForStatus(t, tasks, mt.ID(), domain.TaskStatusCompleted)
		assert.Empty(t, rec.ErrorMessage)
		require.NotNil(t, rec.CompletedAt)
	})

	t.Run("failing task ends failed with the error message", func(t *testing.T) {
		t.Parallel()
		tasks := newMemTaskStore()
		runner := NewTaskRunner(tasks, nil, DefaultTaskRunnerConfig(), testLogger())
		require.NoError(t, runner.Start(ctx))
		defer runner.Stop()

		mt := newMockTask()
		mt.execFn = func(context.Context) error { return errors.New("ffmpeg exited 1") }
		require.NoError(t, runner.Submit(ctx, mt))

		rec := waitForStatus(t, tasks, mt.ID(), domain.TaskStatusFailed)
		assert.Equal(t, "ffmpeg exited 1", rec.ErrorMessage)
	})

	t.Run("panicking task is failed and the worker survives", func(t *testing.T) {
		t.Parallel()
		tasks := newMemTaskStore()
		cfg := DefaultTaskRunnerConfig()
		cfg.WorkerCount = 1
		runner := NewTaskRunner(tasks, nil, cfg, testLogger())
		require.NoError(t, runner.Start(ctx))
		defer runner.Stop()

		bad := newMockTask()
		bad.execFn = func(context.Context) error { panic("corrupt frame") }
		require.NoError(t, runner.Submit(ctx, bad))

		rec := waitForStatus(t, tasks, bad.ID(), domain.TaskStatusFailed)
		assert.Contains(t, rec.ErrorMessage, "corrupt frame")

		// The single worker is still alive.
		next := newMockTask()
		require.NoError(t, runner.Submit(ctx, next))
		waitForStatus(t, tasks, next.ID(), domain.TaskStatusCompleted)
	})
}

// stubFactory rebuilds mock tasks from records.
type stubFactory struct{}

func (stubFactory) CreateFromRecord(rec *domain.ProcessingTask) (Task, error) {
	return &mockTask{
		id:          rec.ID,
		taskType:    rec.Type,
		userID:      rec.UserID,
		mediaFileID: rec.MediaFileID,
	}, nil
}

func TestTaskRunnerRequeuePending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tasks := newMemTaskStore()

	rec, err := domain.NewProcessingTask(uuid.New(), uuid.New(), domain.TaskTypeExtractAudio)
	require.NoError(t, err)
	require.NoError(t, tasks.Create(ctx, rec))

	runner := NewTaskRunner(tasks, stubFactory{}, DefaultTaskRunnerConfig(), testLogger())
	require.NoError(t, runner.Start(ctx))
	defer runner.Stop()

	waitForStatus(t, tasks, rec.ID, domain.TaskStatusCompleted)
}
