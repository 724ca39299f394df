// Package app holds the start-up wiring shared by the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"farm-advisor/internal/advisor"
	"farm-advisor/internal/config"
	"farm-advisor/internal/modelstore"
	"farm-advisor/pkg/database"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// Version is reported in logs by every binary
const Version = "1.0.0"

// Advisors are the loaded recommendation engines
type Advisors struct {
	Store      *modelstore.Store
	Fertilizer *advisor.FertilizerPredictor
	Disease    *advisor.DiseaseClassifier
}

// NewLogger builds the process logger at the configured level
func NewLogger(cfg *config.Config, service string) *logging.StructuredLogger {
	return logging.NewStructuredLogger(service, Version, logging.ParseLevel(cfg.Logging.Level))
}

// DatabaseConfig maps the process configuration onto the database layer
func DatabaseConfig(cfg *config.Config) *database.Config {
	return &database.Config{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		SQLitePath:      cfg.Database.SQLitePath,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectRetries:  cfg.Database.ConnectRetries,
	}
}

// LoadAdvisors loads the model artifacts and builds the fertilizer
// predictor and disease classifier. A non-zero DiseaseSeed makes the
// disease classifier reproducible.
func LoadAdvisors(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*Advisors, error) {
	start := time.Now()
	store, err := modelstore.Load(ctx, cfg.Models.Dir, logger)
	if err != nil {
		return nil, err
	}
	if metricsCollector != nil {
		metricsCollector.ModelArtifactLoadSeconds.Observe(time.Since(start).Seconds())
	}

	fertilizer, err := advisor.NewFertilizerPredictor(advisor.Vocabulary{
		Soil:       store.Soil,
		Crop:       store.Crop,
		Fertilizer: store.Fertilizer,
	}, store.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to build fertilizer predictor: %w", err)
	}

	var src rand.Source
	if seed := cfg.Models.DiseaseSeed; seed != 0 {
		src = rand.NewPCG(seed, seed)
	}

	return &Advisors{
		Store:      store,
		Fertilizer: fertilizer,
		Disease:    advisor.NewDiseaseClassifier(src),
	}, nil
}
