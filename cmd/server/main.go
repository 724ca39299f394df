package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"farm-advisor/internal/app"
	"farm-advisor/internal/config"
	"farm-advisor/internal/handlers"
	"farm-advisor/internal/repository"
	"farm-advisor/internal/services"
	"farm-advisor/migrations"
	"farm-advisor/pkg/database"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// sessionPurgeInterval is how often expired sessions are deleted
const sessionPurgeInterval = 15 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "farm-advisor-api")

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting farm advisor API server", logging.Fields{
		"version":     app.Version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_driver":   cfg.Database.Driver,
		"model_dir":   cfg.Models.Dir,
	})

	metricsCollector := metrics.NewCollector("farm_advisor", prometheus.DefaultRegisterer)

	// Initialize database
	db, err := database.Open(app.DatabaseConfig(cfg), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	applied, err := migrations.Apply(ctx, db.DB(), db.Driver(), migrations.Up)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to apply migrations", logging.Fields{}, err)
	}
	logger.Info(ctx, "[STARTUP] Schema up to date", logging.Fields{"migrations": applied})

	// Model artifacts must load before the server accepts traffic
	advisors, err := app.LoadAdvisors(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load model artifacts", logging.Fields{}, err)
	}

	// Initialize repository and services
	farmRepo := repository.NewFarmRepository(db, logger, metricsCollector)

	recommendationService := services.NewRecommendationService(farmRepo, advisors.Fertilizer, advisors.Disease, logger, metricsCollector)
	authService := services.NewAuthService(farmRepo, logger, metricsCollector, cfg.Auth.SessionTTL, cfg.Auth.BcryptCost)
	farmService := services.NewFarmService(farmRepo, logger, metricsCollector)
	knowledgeService, err := services.NewKnowledgeService()
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load knowledge articles", logging.Fields{}, err)
	}

	router := handlers.NewRouter(authService, promhttp.Handler(), logger, metricsCollector,
		handlers.NewAdvisoryHandler(recommendationService, cfg.Uploads.MaxImageBytes, logger, metricsCollector),
		handlers.NewAuthHandler(authService, logger, metricsCollector),
		handlers.NewFarmHandler(farmService, logger, metricsCollector),
		handlers.NewKnowledgeHandler(knowledgeService, logger, metricsCollector),
		handlers.NewHealthHandler(farmRepo, advisors.Store.LoadedAt, logger, metricsCollector),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	purgeCtx, stopPurge := context.WithCancel(ctx)
	purgeDone := make(chan struct{})
	go func() {
		defer close(purgeDone)
		purgeSessions(purgeCtx, authService, logger)
	}()

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	stopPurge()
	<-purgeDone

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}

// purgeSessions deletes expired sessions until ctx is cancelled
func purgeSessions(ctx context.Context, auth *services.AuthService, logger *logging.StructuredLogger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := auth.PurgeExpiredSessions(ctx); err != nil && ctx.Err() == nil {
				logger.Error(ctx, "[SESSION_PURGE_ERROR] Failed to purge expired sessions", logging.Fields{}, err)
			}
		}
	}
}
