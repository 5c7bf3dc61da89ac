// Package metrics exposes Prometheus collectors for the scoring engine.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dealer_trust"

// Pool request outcomes.
const (
	PoolResultHit  = "hit"
	PoolResultMiss = "miss"
)

type Collector struct {
	registry *prometheus.Registry

	compositesComputed *prometheus.CounterVec
	compositeWarnings  *prometheus.CounterVec
	poolRequests       *prometheus.CounterVec
	poolErrors         prometheus.Counter
	poolSavings        prometheus.Counter
	poolEvictions      prometheus.Counter
	recalibrations     *prometheus.CounterVec
	recalibrationMAPE  prometheus.Histogram
	confidence         *prometheus.GaugeVec
}

// NewCollector creates collectors on a private registry together with the Go
// runtime and process collectors.
func NewCollector() *Collector {
	m := &Collector{
		registry: prometheus.NewRegistry(),
		compositesComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "composites_computed_total",
			Help:      "Composite scores computed by kind and vertical.",
		}, []string{"kind", "vertical"}),
		compositeWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "composite_warnings_total",
			Help:      "Non-fatal warnings raised while computing composites.",
		}, []string{"kind", "warning"}),
		poolRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_pool_requests_total",
			Help:      "Geographic pool lookups by result.",
		}, []string{"result"}),
		poolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_pool_acquisition_errors_total",
			Help:      "Failed acquisitions behind pool misses.",
		}),
		poolSavings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_pool_savings_usd_total",
			Help:      "Acquisition cost avoided by pooled hits, in USD.",
		}),
		poolEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_pool_evictions_total",
			Help:      "Expired pool entries removed by sweeps.",
		}),
		recalibrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalibrations_total",
			Help:      "Confidence recalibrations by type.",
		}, []string{"type"}),
		recalibrationMAPE: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recalibration_mape",
			Help:      "Batch MAPE observed by the feedback loop.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.25, 0.5, 1},
		}),
		confidence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tenant_confidence",
			Help:      "Latest calibrated confidence per tenant.",
		}, []string{"tenant"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.compositesComputed,
		m.compositeWarnings,
		m.poolRequests,
		m.poolErrors,
		m.poolSavings,
		m.poolEvictions,
		m.recalibrations,
		m.recalibrationMAPE,
		m.confidence,
	)

	return m
}

// Registry returns the registry backing this collector.
func (m *Collector) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Collector) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Collector) CompositeComputed(kind, vertical string, warnings []string) {
	if m == nil {
		return
	}
	if vertical == "" {
		vertical = "default"
	}
	m.compositesComputed.WithLabelValues(kind, vertical).Inc()
	for _, w := range warnings {
		m.compositeWarnings.WithLabelValues(kind, w).Inc()
	}
}

func (m *Collector) PoolRequest(result string) {
	if m == nil {
		return
	}
	m.poolRequests.WithLabelValues(result).Inc()
}

func (m *Collector) PoolAcquisitionError() {
	if m == nil {
		return
	}
	m.poolErrors.Inc()
}

func (m *Collector) PoolSavings(usd float64) {
	if m == nil || usd <= 0 {
		return
	}
	m.poolSavings.Add(usd)
}

func (m *Collector) PoolEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.poolEvictions.Add(float64(n))
}

func (m *Collector) Recalibrated(tenant, recalibrationType string, mape, confidence float64) {
	if m == nil {
		return
	}
	m.recalibrations.WithLabelValues(recalibrationType).Inc()
	m.recalibrationMAPE.Observe(mape)
	if tenant != "" {
		m.confidence.WithLabelValues(tenant).Set(confidence)
	}
}
