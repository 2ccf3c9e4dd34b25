package recovery

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/kalinov/scribe-api/internal/platform/logger"
	"github.com/kalinov/scribe-api/internal/store"
)

// Settings bounds for operator-tuned values.
const (
	maxRetriesMin = 0
	maxRetriesMax = 99

	maxWordLengthMin = 20
	maxWordLengthMax = 200
)

// SettingsOverlay holds the operator-tunable subset of the recovery
// policy, loaded fresh from the settings store at the start of each
// cycle. Updates to the store take effect on the next cycle, never
// mid-run.
type SettingsOverlay struct {
	// MaxRetries caps how many times a media file may be re-submitted
	// for the same task type after recovery. Zero means unlimited.
	MaxRetries int

	// RetryLimitEnabled turns the MaxRetries cap on or off.
	RetryLimitEnabled bool

	// MaxWordLength is the longest word kept by transcript garbage
	// cleanup.
	MaxWordLength int

	// GarbageCleanupEnabled turns transcript garbage cleanup on or off.
	GarbageCleanupEnabled bool
}

// DefaultSettingsOverlay returns the overlay used when the settings
// store has no stored value for a key.
func DefaultSettingsOverlay() SettingsOverlay {
	return SettingsOverlay{
		MaxRetries:            3,
		RetryLimitEnabled:     true,
		MaxWordLength:         50,
		GarbageCleanupEnabled: false,
	}
}

// LoadSettingsOverlay reads the operator settings for one cycle.
// A missing key keeps its default; an unparsable or out-of-range value
// keeps its default and is logged. The overlay is a snapshot: it is
// never mutated after this call.
func LoadSettingsOverlay(ctx context.Context, settings store.SettingsStore) SettingsOverlay {
	log := logger.FromContext(ctx)
	overlay := DefaultSettingsOverlay()

	if v, ok := loadInt(ctx, settings, store.SettingMaxRetries, log); ok {
		if v >= maxRetriesMin && v <= maxRetriesMax {
			overlay.MaxRetries = v
		} else {
			log.Warn("setting out of range, keeping default",
				slog.String("key", store.SettingMaxRetries),
				slog.Int("value", v))
		}
	}

	if v, ok := loadBool(ctx, settings, store.SettingRetryLimitEnabled, log); ok {
		overlay.RetryLimitEnabled = v
	}

	if v, ok := loadInt(ctx, settings, store.SettingMaxWordLength, log); ok {
		if v >= maxWordLengthMin && v <= maxWordLengthMax {
			overlay.MaxWordLength = v
		} else {
			log.Warn("setting out of range, keeping default",
				slog.String("key", store.SettingMaxWordLength),
				slog.Int("value", v))
		}
	}

	if v, ok := loadBool(ctx, settings, store.SettingGarbageCleanupEnabled, log); ok {
		overlay.GarbageCleanupEnabled = v
	}

	return overlay
}

// AllowRetry reports whether another re-submission is allowed after the
// given number of failed attempts.
func (o SettingsOverlay) AllowRetry(failedAttempts int) bool {
	if !o.RetryLimitEnabled || o.MaxRetries == 0 {
		return true
	}
	return failedAttempts < o.MaxRetries
}

func loadInt(ctx context.Context, settings store.SettingsStore, key string, log *slog.Logger) (int, bool) {
	raw, err := settings.Get(ctx, key)
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Warn("failed to load setting, keeping default",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return 0, false
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn("unparsable setting, keeping default",
			slog.String("key", key),
			slog.String("value", raw))
		return 0, false
	}

	return v, true
}

func loadBool(ctx context.Context, settings store.SettingsStore, key string, log *slog.Logger) (bool, bool) {
	raw, err := settings.Get(ctx, key)
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Warn("failed to load setting, keeping default",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return false, false
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn("unparsable setting, keeping default",
			slog.String("key", key),
			slog.String("value", raw))
		return false, false
	}

	return v, true
}
