package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"farm-advisor/internal/advisor"
	"farm-advisor/internal/modelstore"
	"farm-advisor/internal/repository"
	"farm-advisor/migrations"
	"farm-advisor/pkg/database"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

type testEnv struct {
	repo    repository.FarmRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logging.NewNop()
	collector := metrics.NewCollector("servicetest", prometheus.NewRegistry())

	db, err := database.Open(&database.Config{
		Driver:         database.DriverSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "services.db"),
		MaxIdleConns:   1,
		ConnectRetries: 1,
	}, logger, collector)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = migrations.Apply(context.Background(), db.DB(), database.DriverSQLite, migrations.Up)
	require.NoError(t, err)

	return &testEnv{
		repo:    repository.NewFarmRepository(db, logger, collector),
		logger:  logger,
		metrics: collector,
	}
}

func newTestPredictor(t *testing.T) *advisor.FertilizerPredictor {
	t.Helper()

	store, err := modelstore.Load(context.Background(), "../../artifacts", logging.NewNop())
	require.NoError(t, err)

	p, err := advisor.NewFertilizerPredictor(advisor.Vocabulary{
		Soil:       store.Soil,
		Crop:       store.Crop,
		Fertilizer: store.Fertilizer,
	}, store.Model)
	require.NoError(t, err)
	return p
}
