package recovery

import (
	"testing"
	"time"

	"github.com/kalinov/scribe-api/internal/config"
	"github.com/kalinov/scribe-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecoveryConfig() config.RecoveryConfig {
	return config.RecoveryConfig{
		StalenessThresholdSeconds:    300,
		StartupRecoveryDelaySeconds:  60,
		HealthCheckIntervalSeconds:   300,
		HealthCheckMaxRuntimeSeconds: 240,
		OrphanThresholdSeconds:       900,
		RecentStallThresholdSeconds:  600,
		LongStallThresholdSeconds:    3600,
		DefaultMaxDurationSeconds:    1800,
		MaxDurationSeconds: map[string]int{
			"extract_audio": 600,
			"transcription": 1800,
		},
		PreventTaskOverlap: true,
	}
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	t.Run("converts seconds to durations", func(t *testing.T) {
		t.Parallel()
		cfg, err := NewConfig(validRecoveryConfig())
		require.NoError(t, err)

		assert.Equal(t, 5*time.Minute, cfg.StalenessThreshold)
		assert.Equal(t, time.Minute, cfg.StartupRecoveryDelay)
		assert.Equal(t, 4*time.Minute, cfg.HealthCheckMaxRuntime)
		assert.Equal(t, 10*time.Minute, cfg.MaxDurations[domain.TaskTypeExtractAudio])
		assert.True(t, cfg.PreventTaskOverlap)
	})

	t.Run("rejects unknown task type in max durations", func(t *testing.T) {
		t.Parallel()
		rc := validRecoveryConfig()
		rc.MaxDurationSeconds["render_video"] = 600

		_, err := NewConfig(rc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "render_video")
	})

	t.Run("rejects max runtime not below interval", func(t *testing.T) {
		t.Parallel()
		rc := validRecoveryConfig()
		rc.HealthCheckMaxRuntimeSeconds = 300

		_, err := NewConfig(rc)
		assert.ErrorIs(t, err, ErrRuntimeNotBelowInterval)
	})

	t.Run("rejects long stall not above recent stall", func(t *testing.T) {
		t.Parallel()
		rc := validRecoveryConfig()
		rc.LongStallThresholdSeconds = 600

		_, err := NewConfig(rc)
		assert.ErrorIs(t, err, ErrStallThresholdOrder)
	})

	t.Run("rejects non-positive thresholds", func(t *testing.T) {
		t.Parallel()
		rc := validRecoveryConfig()
		rc.StalenessThresholdSeconds = 0

		_, err := NewConfig(rc)
		assert.ErrorIs(t, err, ErrNonPositiveThreshold)
	})
}

func TestConfigMaxDuration(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	assert.Equal(t, 30*time.Minute, cfg.MaxDuration(domain.TaskTypeTranscription))
	assert.Equal(t, 10*time.Minute, cfg.MaxDuration(domain.TaskTypeExtractAudio))

	// Types without an explicit entry fall back to the default.
	assert.Equal(t, cfg.DefaultMaxDuration, cfg.MaxDuration(domain.TaskTypeSummarizeTranscript))
}
