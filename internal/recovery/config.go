package recovery

import (
	"errors"
	"fmt"
	"time"

	"github.com/kalinov/scribe-api/internal/config"
	"github.com/kalinov/scribe-api/internal/domain"
)

// Config is the immutable recovery policy shared by the detector, the
// recoverer, and the health-check scheduler. It is constructed once at
// startup and passed by reference; per-cycle operator overrides live in
// SettingsOverlay, never in here.
type Config struct {
	// StalenessThreshold is how long an in-progress task may go without
	// an update before it is suspect.
	StalenessThreshold time.Duration

	// StartupRecoveryDelay is the grace period after process start
	// before scanning, so a worker still attaching is not raced.
	StartupRecoveryDelay time.Duration

	// HealthCheckInterval is the cadence of scheduled health checks.
	HealthCheckInterval time.Duration

	// HealthCheckMaxRuntime bounds a single health-check run. It must be
	// strictly less than HealthCheckInterval so runs can never overlap.
	HealthCheckMaxRuntime time.Duration

	// OrphanThreshold is how long a pending task may wait unclaimed
	// before it is considered orphaned.
	OrphanThreshold time.Duration

	// RecentStallThreshold and LongStallThreshold split stalled media
	// files into "recheck next cycle" and "give up".
	RecentStallThreshold time.Duration
	LongStallThreshold   time.Duration

	// DefaultMaxDuration caps any task type without an explicit entry in
	// MaxDurations.
	DefaultMaxDuration time.Duration

	// MaxDurations maps task types to their maximum allowed runtime.
	MaxDurations map[domain.TaskType]time.Duration

	// PreventTaskOverlap skips a health-check tick when the previous run
	// has not finished, instead of queueing it.
	PreventTaskOverlap bool
}

var (
	// ErrRuntimeNotBelowInterval is returned when the health check's
	// maximum runtime is not strictly less than its interval.
	ErrRuntimeNotBelowInterval = errors.New("health check max runtime must be less than the interval")

	// ErrStallThresholdOrder is returned when the long stall threshold
	// does not exceed the recent stall threshold.
	ErrStallThresholdOrder = errors.New("long stall threshold must exceed recent stall threshold")

	// ErrNonPositiveThreshold is returned when a required duration is
	// zero or negative.
	ErrNonPositiveThreshold = errors.New("recovery threshold must be positive")
)

// NewConfig builds a recovery Config from application configuration,
// converting second counts to durations and validating the result.
// Max-duration entries with an unknown task type name are rejected.
func NewConfig(cfg config.RecoveryConfig) (Config, error) {
	c := Config{
		StalenessThreshold:    time.Duration(cfg.StalenessThresholdSeconds) * time.Second,
		StartupRecoveryDelay:  time.Duration(cfg.StartupRecoveryDelaySeconds) * time.Second,
		HealthCheckInterval:   time.Duration(cfg.HealthCheckIntervalSeconds) * time.Second,
		HealthCheckMaxRuntime: time.Duration(cfg.HealthCheckMaxRuntimeSeconds) * time.Second,
		OrphanThreshold:       time.Duration(cfg.OrphanThresholdSeconds) * time.Second,
		RecentStallThreshold:  time.Duration(cfg.RecentStallThresholdSeconds) * time.Second,
		LongStallThreshold:    time.Duration(cfg.LongStallThresholdSeconds) * time.Second,
		DefaultMaxDuration:    time.Duration(cfg.DefaultMaxDurationSeconds) * time.Second,
		MaxDurations:          make(map[domain.TaskType]time.Duration, len(cfg.MaxDurationSeconds)),
		PreventTaskOverlap:    cfg.PreventTaskOverlap,
	}

	for name, seconds := range cfg.MaxDurationSeconds {
		taskType := domain.TaskType(name)
		if !taskType.IsValid() {
			return Config{}, fmt.Errorf("unknown task type in max durations: %q", name)
		}
		if seconds <= 0 {
			return Config{}, fmt.Errorf("%w: max duration for %q", ErrNonPositiveThreshold, name)
		}
		c.MaxDurations[taskType] = time.Duration(seconds) * time.Second
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate checks the cross-field invariants of the policy.
func (c Config) Validate() error {
	for name, d := range map[string]time.Duration{
		"staleness threshold":      c.StalenessThreshold,
		"health check interval":    c.HealthCheckInterval,
		"health check max runtime": c.HealthCheckMaxRuntime,
		"orphan threshold":         c.OrphanThreshold,
		"recent stall threshold":   c.RecentStallThreshold,
		"long stall threshold":     c.LongStallThreshold,
		"default max duration":     c.DefaultMaxDuration,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s", ErrNonPositiveThreshold, name)
		}
	}

	if c.StartupRecoveryDelay < 0 {
		return fmt.Errorf("%w: startup recovery delay", ErrNonPositiveThreshold)
	}

	if c.HealthCheckMaxRuntime >= c.HealthCheckInterval {
		return ErrRuntimeNotBelowInterval
	}

	if c.LongStallThreshold <= c.RecentStallThreshold {
		return ErrStallThresholdOrder
	}

	return nil
}

// MaxDuration returns the maximum allowed runtime for the given task
// type, falling back to the declared default for types without an
// explicit entry.
func (c Config) MaxDuration(taskType domain.TaskType) time.Duration {
	if d, ok := c.MaxDurations[taskType]; ok {
		return d
	}
	return c.DefaultMaxDuration
}
