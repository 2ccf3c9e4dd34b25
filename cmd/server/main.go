// Package main implements the entry point for the scribe-api server,
// which runs the media processing pipeline and the task lifecycle and
// recovery engine over its durable task records.
package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/kalinov/scribe-api/internal/config"
	"github.com/kalinov/scribe-api/internal/platform/logger"
)

func main() {
	// A missing .env file is fine; real deployments configure through
	// the environment.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)

	slog.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"worker_count", cfg.Worker.Count)

	ctx := context.Background()

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := app.run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
