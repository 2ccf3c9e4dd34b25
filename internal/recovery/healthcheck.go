package recovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kalinov/scribe-api/internal/platform/logger"
	"github.com/kalinov/scribe-api/internal/store"
)

// ErrAlreadyRunning is returned when a health-check run is requested
// while a previous run has not finished. The new run is skipped, never
// queued.
var ErrAlreadyRunning = errors.New("health check already running")

// Stores bundles the persistence interfaces a health-check cycle needs.
// Each cycle re-binds them to its transaction via WithTx.
type Stores struct {
	Tasks      store.TaskStore
	MediaFiles store.MediaFileStore
	Settings   store.SettingsStore
}

// Summary reports what one health-check cycle found and repaired.
type Summary struct {
	StuckTasksFound        int    `json:"stuck_tasks_found"`
	StuckTasksRecovered    int    `json:"stuck_tasks_recovered"`
	InconsistentFilesFound int    `json:"inconsistent_files_found"`
	InconsistentFilesFixed int    `json:"inconsistent_files_fixed"`
	Error                  string `json:"error,omitempty"`
}

// HealthChecker runs detection and recovery on a fixed cadence. At most
// one run is in flight at a time; a tick that lands while a run is
// active is skipped. Each run is bounded by the configured max runtime,
// which the policy guarantees is below the interval.
type HealthChecker struct {
	cfg       Config
	detector  *Detector
	recoverer *Recoverer
	stores    Stores
	logger    *slog.Logger

	running atomic.Bool

	// runTx executes a function in a database transaction. Injectable so
	// tests can bypass *sql.DB.
	runTx func(ctx context.Context, fn store.TxFn) error

	// now is injectable for tests.
	now func() time.Time

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHealthChecker wires a scheduler over the given detector, recoverer
// and stores. db may be nil only in tests that replace runTx.
func NewHealthChecker(
	cfg Config,
	detector *Detector,
	recoverer *Recoverer,
	stores Stores,
	db *sql.DB,
	logger *slog.Logger,
) *HealthChecker {
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthChecker{
		cfg:       cfg,
		detector:  detector,
		recoverer: recoverer,
		stores:    stores,
		logger:    logger.With(slog.String("component", "health_checker")),
		runTx: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// RunOnce executes a single health-check cycle: load the operator
// settings, detect stuck tasks and inconsistent media files, and repair
// them, all within one transaction. If a previous run is still active
// it returns ErrAlreadyRunning without touching anything.
//
// A store error aborts the cycle and rolls the transaction back; the
// scanned records are left untouched for the next cycle.
func (h *HealthChecker) RunOnce(ctx context.Context) (summary Summary, err error) {
	if !h.running.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRunning
	}
	defer h.running.Store(false)

	log := logger.FromContextOrDefault(ctx, h.logger)
	started := h.now()

	ctx, cancel := context.WithTimeout(ctx, h.cfg.HealthCheckMaxRuntime)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("health check panicked: %v", p)
			summary.Error = err.Error()
			log.Error("health check cycle panicked",
				slog.Any("panic", p))
		}

		elapsed := h.now().Sub(started)
		if elapsed >= h.cfg.HealthCheckInterval {
			log.Warn("health check cycle outlasted its interval",
				slog.Duration("elapsed", elapsed),
				slog.Duration("interval", h.cfg.HealthCheckInterval))
		}
	}()

	err = h.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tasks := h.stores.Tasks.WithTx(tx)
		files := h.stores.MediaFiles.WithTx(tx)
		settings := h.stores.Settings.WithTx(tx)

		overlay := LoadSettingsOverlay(ctx, settings)

		stuck, err := h.detector.IdentifyStuckTasks(ctx, tasks)
		if err != nil {
			return err
		}
		summary.StuckTasksFound = len(stuck)

		for _, st := range stuck {
			recovered, err := h.recoverer.RecoverStuckTask(ctx, tasks, files, overlay, st)
			if err != nil {
				return err
			}
			if recovered {
				summary.StuckTasksRecovered++
			}
		}

		inconsistent, err := h.detector.IdentifyInconsistentMediaFiles(ctx, tasks, files)
		if err != nil {
			return err
		}
		summary.InconsistentFilesFound = len(inconsistent)

		for _, inc := range inconsistent {
			fixed, err := h.recoverer.FixInconsistentMediaFile(ctx, tasks, files, inc)
			if err != nil {
				return err
			}
			if fixed {
				summary.InconsistentFilesFixed++
			}
		}

		return nil
	})
	if err != nil {
		summary.Error = err.Error()
		log.Error("health check cycle failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", h.now().Sub(started)))
		return summary, fmt.Errorf("health check cycle failed: %w", err)
	}

	log.Info("health check cycle complete",
		slog.Int("stuck_tasks_found", summary.StuckTasksFound),
		slog.Int("stuck_tasks_recovered", summary.StuckTasksRecovered),
		slog.Int("inconsistent_files_found", summary.InconsistentFilesFound),
		slog.Int("inconsistent_files_fixed", summary.InconsistentFilesFixed),
		slog.Duration("elapsed", h.now().Sub(started)))

	return summary, nil
}

// Start launches the scheduler goroutine. The first cycle runs after
// the startup recovery delay, then on every interval tick. Ticks that
// land while a run is active are skipped.
func (h *HealthChecker) Start(ctx context.Context) {
	if !h.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer close(h.doneCh)

		log := h.logger
		log.Info("health check scheduler starting",
			slog.Duration("startup_delay", h.cfg.StartupRecoveryDelay),
			slog.Duration("interval", h.cfg.HealthCheckInterval))

		initial := time.NewTimer(h.cfg.StartupRecoveryDelay)
		defer initial.Stop()

		select {
		case <-initial.C:
		case <-h.stopCh:
			return
		case <-ctx.Done():
			return
		}

		h.tick(ctx)

		ticker := time.NewTicker(h.cfg.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				h.tick(ctx)
			case <-h.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (h *HealthChecker) tick(ctx context.Context) {
	if h.cfg.PreventTaskOverlap && h.running.Load() {
		h.logger.Warn("previous health check still running, skipping tick")
		return
	}

	if _, err := h.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			h.logger.Warn("previous health check still running, skipping tick")
			return
		}
		// RunOnce already logged the failure with its context.
	}
}

// Stop shuts the scheduler down and waits for any in-flight cycle's
// goroutine to exit. Safe to call more than once.
func (h *HealthChecker) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	if h.started.Load() {
		<-h.doneCh
	}
}
