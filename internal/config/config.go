package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Recovery RecoveryConfig `mapstructure:"recovery" validate:"required"`
	Media    MediaConfig    `mapstructure:"media"    validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// WorkerConfig contains settings for the background worker pool.
type WorkerConfig struct {
	Count     int `mapstructure:"count"      validate:"required,gt=0,lte=64"`
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`
}

// RecoveryConfig contains the static policy for the task lifecycle and
// recovery engine. All durations are in seconds so they can be set from
// plain environment variables.
//
// HealthCheckMaxRuntimeSeconds must be strictly less than
// HealthCheckIntervalSeconds: the scheduler relies on a run always
// finishing inside its own interval so two runs can never overlap.
type RecoveryConfig struct {
	// StalenessThresholdSeconds is how long an in-progress task may go
	// without an update before it is suspect.
	StalenessThresholdSeconds int `mapstructure:"staleness_threshold_seconds" validate:"required,gt=0"`

	// StartupRecoveryDelaySeconds is the grace period after process start
	// before scanning, so a worker still attaching is not raced.
	StartupRecoveryDelaySeconds int `mapstructure:"startup_recovery_delay_seconds" validate:"gte=0"`

	// HealthCheckIntervalSeconds is the cadence of the health check.
	HealthCheckIntervalSeconds int `mapstructure:"health_check_interval_seconds" validate:"required,gt=0"`

	// HealthCheckMaxRuntimeSeconds bounds a single health-check run.
	HealthCheckMaxRuntimeSeconds int `mapstructure:"health_check_max_runtime_seconds" validate:"required,gt=0,ltfield=HealthCheckIntervalSeconds"`

	// OrphanThresholdSeconds is how long a pending task may wait unclaimed
	// before it is considered orphaned.
	OrphanThresholdSeconds int `mapstructure:"orphan_threshold_seconds" validate:"required,gt=0"`

	// RecentStallThresholdSeconds and LongStallThresholdSeconds split
	// stalled media files into "recheck next cycle" and "give up".
	RecentStallThresholdSeconds int `mapstructure:"recent_stall_threshold_seconds" validate:"required,gt=0"`
	LongStallThresholdSeconds   int `mapstructure:"long_stall_threshold_seconds"   validate:"required,gtfield=RecentStallThresholdSeconds"`

	// DefaultMaxDurationSeconds caps any job type without an explicit entry
	// in MaxDurationSeconds.
	DefaultMaxDurationSeconds int `mapstructure:"default_max_duration_seconds" validate:"required,gt=0"`

	// MaxDurationSeconds maps job type names to their maximum allowed
	// runtime.
	MaxDurationSeconds map[string]int `mapstructure:"max_duration_seconds"`

	// PreventTaskOverlap skips a health-check tick when the previous run
	// has not finished, instead of queueing it.
	PreventTaskOverlap bool `mapstructure:"prevent_task_overlap"`
}

// MediaConfig contains the paths for the external media tools and the
// directories the pipeline reads uploads from and writes audio to.
type MediaConfig struct {
	// FFmpegPath is the ffmpeg binary used for audio extraction.
	FFmpegPath string `mapstructure:"ffmpeg_path" validate:"required"`

	// WhisperPath is the whisper.cpp binary used for transcription.
	WhisperPath string `mapstructure:"whisper_path" validate:"required"`

	// WhisperModelPath is the model file passed to whisper.cpp.
	WhisperModelPath string `mapstructure:"whisper_model_path" validate:"required"`

	// UploadDir is where the upload service places media files; a media
	// file's Filename is relative to it.
	UploadDir string `mapstructure:"upload_dir" validate:"required"`

	// WorkDir holds extracted audio between the extraction and
	// transcription stages.
	WorkDir string `mapstructure:"work_dir" validate:"required"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}
