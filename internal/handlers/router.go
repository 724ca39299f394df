package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// RouteRegistrar is implemented by every handler group
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// NewRouter builds the API router. Middleware runs in order: request ID,
// metrics, then session resolution. metricsHandler is mounted at /metrics
// when non-nil.
func NewRouter(
	auth Authenticator,
	metricsHandler http.Handler,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	groups ...RouteRegistrar,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(RequestID)
	router.Use(Metrics(metricsCollector))
	router.Use(Sessions(auth, logger))

	for _, g := range groups {
		g.RegisterRoutes(router)
	}

	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")

	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods("GET")
	}

	return router
}
