package imageset

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects pipeline counters on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	acquireTotal  *prometheus.CounterVec
	acquireBytes  prometheus.Histogram
	rejectedTotal *prometheus.CounterVec
	sourceErrors  *prometheus.CounterVec
	curationTotal *prometheus.CounterVec
}

// NewMetrics registers the imageset collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		acquireTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imageset_acquire_total",
			Help: "Acquisitions by outcome.",
		}, []string{"outcome"}),
		acquireBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "imageset_acquire_bytes",
			Help: "Size of successfully downloaded files.",
			// 16KB .. 64MB
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imageset_rejected_total",
			Help: "Records rejected by validation, by field.",
		}, []string{"field"}),
		sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imageset_source_errors_total",
			Help: "Metadata source pages or rows that could not be read.",
		}, []string{"source"}),
		curationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imageset_curation_total",
			Help: "Curation results by verdict.",
		}, []string{"verdict"}),
	}
	m.registry.MustRegister(m.acquireTotal, m.acquireBytes, m.rejectedTotal, m.sourceErrors, m.curationTotal)
	return m
}

// Registry exposes the underlying registry, e.g. for testutil.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeResult(r Result) {
	if m == nil {
		return
	}
	m.acquireTotal.WithLabelValues(r.Outcome.String()).Inc()
	if r.Outcome == OutcomeSuccess {
		m.acquireBytes.Observe(float64(r.Bytes))
	}
}

func (m *Metrics) observeRejection(field string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(field).Inc()
}

func (m *Metrics) observeSourceError(source string) {
	if m == nil {
		return
	}
	m.sourceErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) observeCuration(label string) {
	if m == nil {
		return
	}
	m.curationTotal.WithLabelValues(label).Inc()
}
