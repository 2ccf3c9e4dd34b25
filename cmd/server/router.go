package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalinov/scribe-api/internal/api"
)

// setupRouter creates and configures the application router. The HTTP
// surface is deliberately small: a liveness probe and the manual
// health-check trigger.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	healthHandler := api.NewHealthHandler(app.healthChecker, app.logger)

	r.Get("/healthz", healthHandler.Liveness)
	r.Post("/internal/health-check", healthHandler.TriggerHealthCheck)

	return r
}
