package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalinov/scribe-api/internal/config"
	"github.com/kalinov/scribe-api/internal/events"
	"github.com/kalinov/scribe-api/internal/platform/gemini"
	"github.com/kalinov/scribe-api/internal/platform/media"
	"github.com/kalinov/scribe-api/internal/platform/postgres"
	"github.com/kalinov/scribe-api/internal/recovery"
	"github.com/kalinov/scribe-api/internal/store"
	"github.com/kalinov/scribe-api/internal/task"
)

// application bundles the long-lived dependencies so the router,
// server, and shutdown path share one wiring.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	taskStore      store.TaskStore
	mediaFileStore store.MediaFileStore
	userStore      store.UserStore
	settingsStore  store.SettingsStore
	artifactStore  store.ArtifactStore

	// Event system
	eventEmitter events.EventEmitter

	// Background processing
	taskRunner    *task.TaskRunner
	healthChecker *recovery.HealthChecker
}

// newApplication connects to the database, applies migrations, and
// wires the pipeline and the recovery engine.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	taskStore := postgres.NewPostgresTaskStore(db, logger)
	mediaFileStore := postgres.NewPostgresMediaFileStore(db, logger)
	userStore := postgres.NewPostgresUserStore(db, logger)
	settingsStore := postgres.NewPostgresSettingsStore(db, logger)
	artifactStore := postgres.NewPostgresArtifactStore(db, logger)

	recoveryCfg, err := recovery.NewConfig(cfg.Recovery)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("invalid recovery configuration: %w", err)
	}

	detector := recovery.NewDetector(recoveryCfg, time.Now().UTC(), logger)
	recoverer := recovery.NewRecoverer(recoveryCfg, logger)
	healthChecker := recovery.NewHealthChecker(
		recoveryCfg,
		detector,
		recoverer,
		recovery.Stores{
			Tasks:      taskStore,
			MediaFiles: mediaFileStore,
			Settings:   settingsStore,
		},
		db,
		logger,
	)

	geminiClient, err := gemini.NewClient(ctx, logger, cfg.LLM)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	eventEmitter := events.NewInMemoryEventEmitter(logger)

	deps := task.PipelineDeps{
		Tasks:     taskStore,
		Files:     mediaFileStore,
		Artifacts: artifactStore,
		Settings:  settingsStore,
		Providers: task.Providers{
			Extractor:   media.NewFFmpegExtractor(cfg.Media, logger),
			Transcriber: media.NewWhisperTranscriber(cfg.Media, logger),
			Analyzer:    geminiClient,
			Summarizer:  geminiClient,
		},
		Emitter: eventEmitter,
		Logger:  logger,
	}

	factory := task.NewPipelineTaskFactory(deps)
	taskRunner := task.NewTaskRunner(
		taskStore,
		factory,
		task.TaskRunnerConfig{
			WorkerCount: cfg.Worker.Count,
			QueueSize:   cfg.Worker.QueueSize,
		},
		logger,
	)

	// Pipeline stages request their successor through the event system;
	// the handler turns those requests back into submitted tasks.
	eventEmitter.RegisterHandler(task.NewPipelineEventHandler(factory, taskRunner, logger))

	return &application{
		config:         cfg,
		logger:         logger,
		db:             db,
		taskStore:      taskStore,
		mediaFileStore: mediaFileStore,
		userStore:      userStore,
		settingsStore:  settingsStore,
		artifactStore:  artifactStore,
		eventEmitter:   eventEmitter,
		taskRunner:     taskRunner,
		healthChecker:  healthChecker,
	}, nil
}

// run starts background processing and serves HTTP until shutdown.
func (app *application) run(ctx context.Context) error {
	if err := app.taskRunner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	app.healthChecker.Start(ctx)

	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup stops background work and releases resources. Order matters:
// the health checker and workers must stop touching the database before
// the pool closes.
func (app *application) cleanup() {
	app.healthChecker.Stop()
	app.taskRunner.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection", "error", err)
	}

	app.logger.Info("application shutdown complete")
}
