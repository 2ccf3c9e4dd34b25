package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file: ./config.yaml, missing file is not an error
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables with SCRIBE_ prefix override file values,
	// e.g. SCRIBE_RECOVERY_STALENESS_THRESHOLD_SECONDS=300
	v.SetEnvPrefix("SCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only surfaces keys viper already knows about, and the
	// database URL deliberately has no default. Bind it explicitly so
	// SCRIBE_DATABASE_URL reaches Unmarshal.
	if err := v.BindEnv("database.url"); err != nil {
		return nil, fmt.Errorf("failed to bind database url: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default value for every setting so a bare
// environment still yields a valid configuration (the database URL is
// the only value without a usable default).
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("worker.count", 4)
	v.SetDefault("worker.queue_size", 100)

	v.SetDefault("recovery.staleness_threshold_seconds", 300)
	v.SetDefault("recovery.startup_recovery_delay_seconds", 60)
	v.SetDefault("recovery.health_check_interval_seconds", 300)
	v.SetDefault("recovery.health_check_max_runtime_seconds", 240)
	v.SetDefault("recovery.orphan_threshold_seconds", 900)
	v.SetDefault("recovery.recent_stall_threshold_seconds", 600)
	v.SetDefault("recovery.long_stall_threshold_seconds", 3600)
	v.SetDefault("recovery.default_max_duration_seconds", 1800)
	v.SetDefault("recovery.max_duration_seconds", map[string]int{
		"extract_audio":        600,
		"transcription":        1800,
		"analyze_transcript":   900,
		"summarize_transcript": 600,
	})
	v.SetDefault("recovery.prevent_task_overlap", true)

	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.whisper_path", "whisper.cpp")
	v.SetDefault("media.whisper_model_path", "/var/lib/scribe/models/ggml-base.en.bin")
	v.SetDefault("media.upload_dir", "/var/lib/scribe/uploads")
	v.SetDefault("media.work_dir", "/var/lib/scribe/work")

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
}
