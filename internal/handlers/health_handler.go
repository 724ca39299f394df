package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	responder
	db          HealthChecker
	modelLoaded time.Time
}

// NewHealthHandler creates a new health handler. modelLoaded is reported
// as-is so operators can tell which artifact load a process is serving.
func NewHealthHandler(db HealthChecker, modelLoaded time.Time, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *HealthHandler {
	return &HealthHandler{
		responder:   responder{logger: logger, metrics: metricsCollector},
		db:          db,
		modelLoaded: modelLoaded,
	}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":           "healthy",
		"database":         "ok",
		"models_loaded_at": h.modelLoaded.UTC().Format(time.RFC3339),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK] Database unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		status["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{
		"status": status["status"],
	})
	h.sendJSON(w, status, code)
}

// RegisterRoutes registers the health route
func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
