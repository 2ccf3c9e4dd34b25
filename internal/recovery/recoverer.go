package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/kalinov/scribe-api/internal/platform/logger"
	"github.com/kalinov/scribe-api/internal/store"
)

// Recoverer is the write path of the recovery engine. Every repair
// re-reads the record it is about to change and skips with a no-op if a
// worker got there first; repairs are idempotent and safe to invoke
// again for work already fixed by a concurrent pass.
type Recoverer struct {
	cfg    Config
	logger *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewRecoverer creates a recoverer using the given policy.
func NewRecoverer(cfg Config, logger *slog.Logger) *Recoverer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Recoverer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "recovery_recoverer")),
		now:    time.Now,
	}
}

// RecoverStuckTask forces a stuck task into the failed terminal state
// with a synthetic error naming the timeout class, and rolls the media
// file back to its last stable stage so the work can be re-submitted.
// When the retry limit for the file and task type is exhausted, the
// file is moved to the error stage instead.
//
// Returns false with a nil error when nothing was changed: the record
// is already terminal, has disappeared, or a worker revived it since
// detection. Recovering an already-recovered task is a no-op, not an
// error.
func (r *Recoverer) RecoverStuckTask(
	ctx context.Context,
	tasks store.TaskStore,
	files store.MediaFileStore,
	overlay SettingsOverlay,
	stuck StuckTask,
) (bool, error) {
	log := logger.FromContextOrDefault(ctx, r.logger).With(
		slog.String("task_id", stuck.Task.ID.String()),
		slog.String("task_type", string(stuck.Task.Type)),
		slog.String("reason", string(stuck.Reason)))

	// Re-validate against a fresh read: detection ran earlier and a
	// worker may have finished or revived the task in the meantime.
	fresh, err := tasks.GetByID(ctx, stuck.Task.ID)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Info("stuck task disappeared before recovery, treating as recovered")
			return false, nil
		}
		return false, fmt.Errorf("failed to re-read stuck task: %w", err)
	}

	if fresh.IsTerminal() {
		log.Debug("stuck task already terminal, skipping")
		return false, nil
	}

	if !r.stillStuck(fresh, stuck.Reason) {
		log.Info("stuck task revived by a worker since detection, skipping")
		return false, nil
	}

	errMsg := syntheticError(stuck, r.cfg)
	if err := tasks.UpdateStatus(ctx, fresh.ID, domain.TaskStatusFailed, errMsg); err != nil {
		return false, fmt.Errorf("failed to mark stuck task failed: %w", err)
	}

	log.Info("marked stuck task failed",
		slog.String("error_message", errMsg))

	if err := r.releaseMediaFile(ctx, tasks, files, overlay, fresh, log); err != nil {
		return false, err
	}

	return true, nil
}

// stillStuck re-applies the detection rule for the given reason to a
// freshly read record.
func (r *Recoverer) stillStuck(task *domain.ProcessingTask, reason StuckReason) bool {
	now := r.now()

	switch reason {
	case StuckReasonStale:
		return task.Status == domain.TaskStatusInProgress &&
			now.Sub(task.UpdatedAt) > r.cfg.StalenessThreshold
	case StuckReasonMaxDuration:
		return task.Status == domain.TaskStatusInProgress &&
			now.Sub(task.CreatedAt) > r.cfg.MaxDuration(task.Type)
	case StuckReasonOrphaned:
		return task.Status == domain.TaskStatusPending &&
			now.Sub(task.CreatedAt) > r.cfg.OrphanThreshold
	default:
		return false
	}
}

// releaseMediaFile returns the failed task's media file to a retryable
// state: roll the in-flight stage back one step, or park the file in
// the error stage when the retry limit is spent. A file that is not in
// the task's in-flight stage is left alone.
func (r *Recoverer) releaseMediaFile(
	ctx context.Context,
	tasks store.TaskStore,
	files store.MediaFileStore,
	overlay SettingsOverlay,
	task *domain.ProcessingTask,
	log *slog.Logger,
) error {
	activeStage, ok := task.Type.ActiveStage()
	if !ok {
		return nil
	}

	file, err := files.GetByID(ctx, task.MediaFileID)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Info("media file for stuck task no longer exists, skipping rollback",
				slog.String("media_file_id", task.MediaFileID.String()))
			return nil
		}
		return fmt.Errorf("failed to load media file for rollback: %w", err)
	}

	if file.Status != activeStage {
		log.Debug("media file not in the task's in-flight stage, leaving as is",
			slog.String("media_file_id", file.ID.String()),
			slog.String("file_status", string(file.Status)))
		return nil
	}

	target, _ := activeStage.RollbackStage()

	failedAttempts, err := tasks.CountCompletedRetries(ctx, file.ID, task.Type)
	if err != nil {
		return fmt.Errorf("failed to count retries for media file: %w", err)
	}

	if !overlay.AllowRetry(failedAttempts) {
		target = domain.MediaFileStatusError
	}

	if err := files.UpdateStatus(ctx, file.ID, target); err != nil {
		if store.IsNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to roll back media file status: %w", err)
	}

	if err := files.SetCurrentTask(ctx, file.ID, nil); err != nil && !store.IsNotFoundError(err) {
		return fmt.Errorf("failed to clear media file task reference: %w", err)
	}

	log.Info("rolled back media file after stuck task recovery",
		slog.String("media_file_id", file.ID.String()),
		slog.String("from_status", string(activeStage)),
		slog.String("to_status", string(target)),
		slog.Int("failed_attempts", failedAttempts))

	return nil
}

// FixInconsistentMediaFile repairs one inconsistent media file:
//
//   - stale_reference: clear the dangling task reference.
//   - no_active_task: park the file in the error stage, but only once
//     it has been stalled past the long stall threshold; a younger
//     file is left for a later cycle in case a submission is still on
//     its way.
//   - unresolved_terminal: advance the file to the completed task's
//     stage, or to the error stage when the task failed. The terminal
//     task is decisive, so no stall window applies.
//
// The classification is recomputed from fresh reads before writing; a
// file changed by a worker in the meantime — including one touched back
// inside the recent stall threshold — is skipped with a no-op so a
// legitimate concurrent update is never overwritten.
func (r *Recoverer) FixInconsistentMediaFile(
	ctx context.Context,
	tasks store.TaskStore,
	files store.MediaFileStore,
	inc InconsistentFile,
) (bool, error) {
	log := logger.FromContextOrDefault(ctx, r.logger).With(
		slog.String("media_file_id", inc.File.ID.String()),
		slog.String("kind", string(inc.Kind)))

	fresh, err := files.GetByID(ctx, inc.File.ID)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Info("inconsistent media file disappeared before repair, treating as fixed")
			return false, nil
		}
		return false, fmt.Errorf("failed to re-read media file: %w", err)
	}

	stalled := r.now().Sub(fresh.UpdatedAt)
	if stalled < r.cfg.RecentStallThreshold {
		log.Info("media file touched since detection, skipping repair",
			slog.String("current_status", string(fresh.Status)))
		return false, nil
	}

	history, err := tasks.FindByMediaFile(ctx, fresh.ID)
	if err != nil {
		return false, fmt.Errorf("failed to re-read task history: %w", err)
	}

	kind, last, ok := classifyFile(fresh, history)
	if !ok || kind != inc.Kind {
		log.Info("media file changed since detection, skipping repair",
			slog.String("current_status", string(fresh.Status)))
		return false, nil
	}

	var target domain.MediaFileStatus
	switch kind {
	case InconsistencyStaleReference:
		if err := files.SetCurrentTask(ctx, fresh.ID, nil); err != nil {
			if store.IsNotFoundError(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to clear stale task reference: %w", err)
		}
		log.Info("cleared stale task reference")
		return true, nil

	case InconsistencyNoActiveTask:
		if stalled < r.cfg.LongStallThreshold {
			log.Info("media file without task history still inside the long stall window, rechecking next cycle",
				slog.Duration("stalled", stalled))
			return false, nil
		}
		target = domain.MediaFileStatusError

	case InconsistencyUnresolvedTerminal:
		if last.Status == domain.TaskStatusCompleted {
			done, ok := last.Type.CompletedStage()
			if !ok {
				return false, nil
			}
			target = done
		} else {
			target = domain.MediaFileStatusError
		}

	default:
		return false, nil
	}

	if err := files.UpdateStatus(ctx, fresh.ID, target); err != nil {
		if store.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to repair media file status: %w", err)
	}

	if err := files.SetCurrentTask(ctx, fresh.ID, nil); err != nil && !store.IsNotFoundError(err) {
		return false, fmt.Errorf("failed to clear media file task reference: %w", err)
	}

	log.Info("repaired inconsistent media file",
		slog.String("from_status", string(fresh.Status)),
		slog.String("to_status", string(target)))

	return true, nil
}

// syntheticError builds the error message written to a stuck task's
// record, naming the timeout class so operators can tell staleness
// from max-duration and orphaning apart.
func syntheticError(stuck StuckTask, cfg Config) string {
	switch stuck.Reason {
	case StuckReasonStale:
		return fmt.Sprintf(
			"task timed out: no progress update for %s (staleness threshold %s)",
			stuck.Elapsed.Round(time.Second), cfg.StalenessThreshold)
	case StuckReasonMaxDuration:
		return fmt.Sprintf(
			"task timed out: ran for %s, exceeding the %s limit for %s tasks",
			stuck.Elapsed.Round(time.Second), cfg.MaxDuration(stuck.Task.Type), stuck.Task.Type)
	case StuckReasonOrphaned:
		return fmt.Sprintf(
			"task orphaned: never claimed by a worker within %s",
			cfg.OrphanThreshold)
	default:
		return fmt.Sprintf("task recovered for unknown reason %q", stuck.Reason)
	}
}
