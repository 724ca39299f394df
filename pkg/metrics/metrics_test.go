package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_IndependentRegistries(t *testing.T) {
	// Two collectors with the same namespace must not collide when they
	// are registered on separate registries.
	c1 := NewCollector("farm_advisor", prometheus.NewRegistry())
	c2 := NewCollector("farm_advisor", prometheus.NewRegistry())

	c1.RecordRecommendation("crop", "success")
	c1.RecordRecommendation("crop", "success")
	c2.RecordRecommendation("crop", "success")

	assert.Equal(t, 2.0, testutil.ToFloat64(c1.RecommendationsTotal.WithLabelValues("crop", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c2.RecommendationsTotal.WithLabelValues("crop", "success")))
}

func TestCollector_Recorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("test", reg)

	c.RecordAPIRequest("/api/crop-recommendation", "POST", "200")
	c.RecordAPIError("validation_error", "/api/crop-recommendation")
	c.RecordHistoryWriteError("fertilizer")
	c.RecordBatchSample("failed")
	c.RecordDBError("exec_error")
	c.UpdateDBConnectionPool(2, 3, 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIRequestsTotal.WithLabelValues("/api/crop-recommendation", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIErrorsTotal.WithLabelValues("validation_error", "/api/crop-recommendation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HistoryWriteErrorsTotal.WithLabelValues("fertilizer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BatchSamplesTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DBErrorsTotal.WithLabelValues("exec_error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewCollector("timer", prometheus.NewRegistry())

	timer := c.NewTimer(c.InferenceDuration)
	d := timer.ObserveDuration()
	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
	assert.Equal(t, 1, testutil.CollectAndCount(c.InferenceDuration))
}
