package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/kalinov/scribe-api/internal/platform/logger"
	"github.com/kalinov/scribe-api/internal/store"
)

// StuckReason classifies why a task was flagged by detection. The
// reason selects the synthetic error message recovery writes.
type StuckReason string

// Possible stuck reasons
const (
	// StuckReasonStale marks an in-progress task whose last update is
	// older than the staleness threshold.
	StuckReasonStale StuckReason = "stale"

	// StuckReasonMaxDuration marks an in-progress task that has exceeded
	// the maximum duration for its type, even if it is still reporting
	// progress.
	StuckReasonMaxDuration StuckReason = "max_duration"

	// StuckReasonOrphaned marks a pending task never claimed by a worker
	// within the orphan threshold.
	StuckReasonOrphaned StuckReason = "orphaned"
)

// StuckTask is one detection result: the record plus enough context for
// recovery to decide the repair without re-deriving it.
type StuckTask struct {
	Task    *domain.ProcessingTask
	Reason  StuckReason
	Elapsed time.Duration
}

// InconsistencyKind classifies why a media file's status cannot be
// explained by its task history. Classification is total: every
// candidate file is consistent or falls into exactly one kind.
type InconsistencyKind string

// Possible inconsistency kinds
const (
	// InconsistencyStaleReference marks a file whose current task
	// reference points at a record that no longer exists.
	InconsistencyStaleReference InconsistencyKind = "stale_reference"

	// InconsistencyNoActiveTask marks an in-flight file with no task
	// records at all.
	InconsistencyNoActiveTask InconsistencyKind = "no_active_task"

	// InconsistencyUnresolvedTerminal marks an in-flight file whose most
	// recent task is terminal but whose status was never advanced to
	// match.
	InconsistencyUnresolvedTerminal InconsistencyKind = "unresolved_terminal"
)

// InconsistentFile is one detection result for a media file, carrying
// the most recent task (when one exists) so recovery can pick the
// matching repair.
type InconsistentFile struct {
	File     *domain.MediaFile
	Kind     InconsistencyKind
	LastTask *domain.ProcessingTask

	// Stalled is how long the file has gone without an update, measured
	// at detection time. Always at least the recent stall threshold.
	Stalled time.Duration
}

// Detector performs the read-only scans of the recovery engine. It
// never mutates state; it produces candidates for the Recoverer.
type Detector struct {
	cfg       Config
	startedAt time.Time
	logger    *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewDetector creates a detector using the given policy. startedAt is
// the process start time, used for the startup recovery grace period.
func NewDetector(cfg Config, startedAt time.Time, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		cfg:       cfg,
		startedAt: startedAt,
		logger:    logger.With(slog.String("component", "recovery_detector")),
		now:       time.Now,
	}
}

// IdentifyStuckTasks scans for in-progress tasks that are stale or have
// exceeded their type's maximum duration, and for pending tasks no
// worker ever claimed. Results are ordered oldest created_at first so
// recovery processes the longest-stuck work first.
//
// During the startup recovery delay the scan returns nothing, and tasks
// younger than the delay are always excluded: a worker may still be
// attaching to them.
func (d *Detector) IdentifyStuckTasks(ctx context.Context, tasks store.TaskStore) ([]StuckTask, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)
	now := d.now()

	if now.Sub(d.startedAt) < d.cfg.StartupRecoveryDelay {
		log.Debug("skipping stuck task scan inside startup recovery delay",
			slog.Time("started_at", d.startedAt),
			slog.Duration("delay", d.cfg.StartupRecoveryDelay))
		return nil, nil
	}

	inProgress, err := tasks.FindByStatus(ctx, domain.TaskStatusInProgress, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan in-progress tasks: %w", err)
	}

	var stuck []StuckTask
	for _, task := range inProgress {
		if now.Sub(task.CreatedAt) < d.cfg.StartupRecoveryDelay {
			continue
		}

		if st, ok := d.classifyRunning(task, now); ok {
			stuck = append(stuck, st)
		}
	}

	orphanCutoff := now.Add(-d.cfg.OrphanThreshold)
	pending, err := tasks.FindByStatus(ctx, domain.TaskStatusPending, orphanCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending tasks: %w", err)
	}

	for _, task := range pending {
		if now.Sub(task.CreatedAt) < d.cfg.StartupRecoveryDelay {
			continue
		}

		stuck = append(stuck, StuckTask{
			Task:    task,
			Reason:  StuckReasonOrphaned,
			Elapsed: now.Sub(task.CreatedAt),
		})
	}

	sort.SliceStable(stuck, func(i, j int) bool {
		return stuck[i].Task.CreatedAt.Before(stuck[j].Task.CreatedAt)
	})

	if len(stuck) > 0 {
		log.Info("stuck task scan found candidates",
			slog.Int("count", len(stuck)))
	}

	return stuck, nil
}

// classifyRunning applies the staleness and max-duration rules to one
// in-progress task. Staleness wins when both apply.
func (d *Detector) classifyRunning(task *domain.ProcessingTask, now time.Time) (StuckTask, bool) {
	sinceUpdate := now.Sub(task.UpdatedAt)
	if sinceUpdate > d.cfg.StalenessThreshold {
		return StuckTask{Task: task, Reason: StuckReasonStale, Elapsed: sinceUpdate}, true
	}

	age := now.Sub(task.CreatedAt)
	if age > d.cfg.MaxDuration(task.Type) {
		return StuckTask{Task: task, Reason: StuckReasonMaxDuration, Elapsed: age}, true
	}

	return StuckTask{}, false
}

// IdentifyInconsistentMediaFiles scans media files whose status implies
// active processing and classifies each against its task history. Files
// updated within the recent stall threshold are skipped without
// classification: a stage handoff may still be in flight.
func (d *Detector) IdentifyInconsistentMediaFiles(
	ctx context.Context,
	tasks store.TaskStore,
	files store.MediaFileStore,
) ([]InconsistentFile, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)
	now := d.now()

	candidates, err := files.FindByStatuses(ctx, inFlightStatuses())
	if err != nil {
		return nil, fmt.Errorf("failed to scan in-flight media files: %w", err)
	}

	var inconsistent []InconsistentFile
	for _, file := range candidates {
		stalled := now.Sub(file.UpdatedAt)
		if stalled < d.cfg.RecentStallThreshold {
			continue
		}

		history, err := tasks.FindByMediaFile(ctx, file.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load task history for media file %s: %w", file.ID, err)
		}

		kind, last, ok := classifyFile(file, history)
		if !ok {
			continue
		}

		inconsistent = append(inconsistent, InconsistentFile{
			File:     file,
			Kind:     kind,
			LastTask: last,
			Stalled:  stalled,
		})
	}

	if len(inconsistent) > 0 {
		log.Info("inconsistent media file scan found candidates",
			slog.Int("count", len(inconsistent)))
	}

	return inconsistent, nil
}

// classifyFile decides whether an in-flight media file is explainable
// by its task history. history must be ordered newest first. ok is
// false when the file is consistent. Shared with the recoverer, which
// re-runs the classification on fresh reads before writing.
func classifyFile(
	file *domain.MediaFile,
	history []*domain.ProcessingTask,
) (InconsistencyKind, *domain.ProcessingTask, bool) {
	if !file.Status.IsInFlight() {
		return "", nil, false
	}

	// An active task explains the in-flight status.
	for _, task := range history {
		if !task.IsTerminal() {
			return "", nil, false
		}
	}

	// A dangling current-task reference means the record was deleted out
	// from under the file.
	if file.CurrentTaskID != nil {
		found := false
		for _, task := range history {
			if task.ID == *file.CurrentTaskID {
				found = true
				break
			}
		}
		if !found {
			var last *domain.ProcessingTask
			if len(history) > 0 {
				last = history[0]
			}
			return InconsistencyStaleReference, last, true
		}
	}

	if len(history) == 0 {
		return InconsistencyNoActiveTask, nil, true
	}

	return InconsistencyUnresolvedTerminal, history[0], true
}

// inFlightStatuses returns the media file stages that imply a task
// should be running.
func inFlightStatuses() []domain.MediaFileStatus {
	return []domain.MediaFileStatus{
		domain.MediaFileStatusExtractingAudio,
		domain.MediaFileStatusTranscribing,
		domain.MediaFileStatusAnalyzing,
		domain.MediaFileStatusSummarizing,
	}
}
