// Package metrics exposes Prometheus collectors for refreshes, executions and
// remote calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. It satisfies executor.Observer.
type Metrics struct {
	registry *prometheus.Registry

	refreshes        *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	operations       *prometheus.GaugeVec
	revision         prometheus.Gauge
	discoveryGaps    prometheus.Gauge
	executions       *prometheus.CounterVec
	executionLatency *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
}

// NewRegistry returns a registry carrying the process and Go runtime collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())
	return registry
}

// New registers the collectors with registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolsmith_refreshes_total",
				Help: "Registry refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
		refreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "toolsmith_refresh_duration_seconds",
				Help:    "Duration of discovery plus generation",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		operations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "toolsmith_operations",
				Help: "Operations in the active snapshot by kind",
			},
			[]string{"kind"},
		),
		revision: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolsmith_snapshot_revision",
				Help: "Revision of the active snapshot",
			},
		),
		discoveryGaps: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolsmith_discovery_failures",
				Help: "Discovery and generation failures recorded in the active snapshot",
			},
		),
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolsmith_executions_total",
				Help: "Operation executions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		executionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolsmith_execution_duration_seconds",
				Help:    "Duration of operation executions",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolsmith_cache_lookups_total",
				Help: "Response cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRefresh records one refresh attempt.
func (m *Metrics) ObserveRefresh(d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.refreshes.WithLabelValues(outcome).Inc()
	m.refreshDuration.Observe(d.Seconds())
}

// SetSnapshot records the shape of a newly active snapshot.
func (m *Metrics) SetSnapshot(revision int64, ops []models.OperationDescriptor, failures int) {
	counts := make(map[models.OperationKind]int)
	for _, op := range ops {
		counts[op.Kind]++
	}
	for _, kind := range append(append([]models.OperationKind(nil), models.ResourceOperationKinds...), models.OpProcedure) {
		m.operations.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}
	m.revision.Set(float64(revision))
	m.discoveryGaps.Set(float64(failures))
}

// ExecutionFinished records one execution.
func (m *Metrics) ExecutionFinished(operation string, kind models.OperationKind, outcome string, d time.Duration) {
	k := string(kind)
	if k == "" {
		k = "unknown"
	}
	m.executions.WithLabelValues(k, outcome).Inc()
	m.executionLatency.WithLabelValues(k).Observe(d.Seconds())
}

// CacheLookup records a response cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
