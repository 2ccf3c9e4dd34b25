package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kalinov/scribe-api/internal/recovery"
)

// HealthRunner runs one health-check cycle on demand. Satisfied by
// *recovery.HealthChecker.
type HealthRunner interface {
	RunOnce(ctx context.Context) (recovery.Summary, error)
}

// HealthHandler exposes the recovery engine's manual trigger and the
// liveness probe. This is the whole HTTP surface: task submission and
// media management belong to the upload service, not this one.
type HealthHandler struct {
	checker HealthRunner
	logger  *slog.Logger
}

// NewHealthHandler creates the handler over the given checker.
func NewHealthHandler(checker HealthRunner, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		logger:  logger.With(slog.String("component", "health_handler")),
	}
}

// Liveness responds to GET /healthz.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error("failed to write liveness response", slog.String("error", err.Error()))
	}
}

// TriggerHealthCheck responds to POST /internal/health-check: it runs a
// cycle synchronously and returns the summary. A cycle already in
// flight yields 409; a failed cycle yields 500 with the partial
// summary.
func (h *HealthHandler) TriggerHealthCheck(w http.ResponseWriter, r *http.Request) {
	summary, err := h.checker.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, recovery.ErrAlreadyRunning) {
			h.respondJSON(w, http.StatusConflict, map[string]string{
				"error": "health check already running",
			})
			return
		}

		h.respondJSON(w, http.StatusInternalServerError, summary)
		return
	}

	h.respondJSON(w, http.StatusOK, summary)
}

func (h *HealthHandler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
