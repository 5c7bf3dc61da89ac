package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.Registry())
}

func TestCollector_CompositeComputed(t *testing.T) {
	collector := NewCollector()

	collector.CompositeComputed("trust", "", nil)
	collector.CompositeComputed("trust", "acquisition", []string{"missing_input", "missing_input"})

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.compositesComputed.WithLabelValues("trust", "default")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.compositesComputed.WithLabelValues("trust", "acquisition")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.compositeWarnings.WithLabelValues("trust", "missing_input")))
}

func TestCollector_Pool(t *testing.T) {
	collector := NewCollector()

	collector.PoolRequest(PoolResultMiss)
	collector.PoolRequest(PoolResultHit)
	collector.PoolRequest(PoolResultHit)
	collector.PoolAcquisitionError()
	collector.PoolSavings(0.015)
	collector.PoolSavings(0)
	collector.PoolEvictions(3)
	collector.PoolEvictions(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.poolRequests.WithLabelValues(PoolResultHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.poolRequests.WithLabelValues(PoolResultMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.poolErrors))
	assert.InDelta(t, 0.015, testutil.ToFloat64(collector.poolSavings), 1e-12)
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.poolEvictions))
}

func TestCollector_Recalibrated(t *testing.T) {
	collector := NewCollector()

	collector.Recalibrated("dealer-1", "minor", 0.02, 0.87)
	collector.Recalibrated("", "major", 0.4, 0.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.recalibrations.WithLabelValues("minor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.recalibrations.WithLabelValues("major")))
	assert.Equal(t, 0.87, testutil.ToFloat64(collector.confidence.WithLabelValues("dealer-1")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.recalibrationMAPE))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.CompositeComputed("qai", "service", []string{"clamped_input"})
		collector.PoolRequest(PoolResultHit)
		collector.PoolAcquisitionError()
		collector.PoolSavings(1)
		collector.PoolEvictions(1)
		collector.Recalibrated("t", "minor", 0.1, 0.9)
	})
	assert.Nil(t, collector.Registry())
	assert.NotNil(t, collector.Handler())
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector()
	collector.PoolRequest(PoolResultHit)

	server := httptest.NewServer(collector.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `dealer_trust_geo_pool_requests_total{result="hit"} 1`)
}
