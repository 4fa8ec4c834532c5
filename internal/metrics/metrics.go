// Package metrics holds the prometheus collectors of a feature store.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vibe_vcf"

// Metrics records store activity. A nil *Metrics records nothing.
type Metrics struct {
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	features      prometheus.Counter
	headerParses  prometheus.Counter
	state         *prometheus.GaugeVec
	statsDensity  prometheus.Gauge
}

// New registers the collectors with reg. Use prometheus.NewRegistry in tests
// to avoid clashing with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Labels: status (ok, error)
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "queries_total",
			Help:      "Feature queries by outcome",
		}, []string{"status"}),
		queryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Feature query latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"status"}),
		features: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "features_total",
			Help:      "Features emitted by queries",
		}),
		headerParses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "header_parses_total",
			Help:      "Header blocks parsed",
		}),
		// Labels: state; the current state is 1, all others 0.
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "state",
			Help:      "Lifecycle state of the store",
		}, []string{"state"}),
		statsDensity: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "feature_density",
			Help:      "Estimated features per base",
		}),
	}
}

// RecordQuery records a finished query and the features it emitted.
func (m *Metrics) RecordQuery(d time.Duration, features int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.queries.WithLabelValues(status).Inc()
	m.queryDuration.WithLabelValues(status).Observe(d.Seconds())
	m.features.Add(float64(features))
}

// RecordHeaderParse counts a header parse.
func (m *Metrics) RecordHeaderParse() {
	if m == nil {
		return
	}
	m.headerParses.Inc()
}

// SetState marks state as current among all.
func (m *Metrics) SetState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

// SetFeatureDensity records the estimated feature density.
func (m *Metrics) SetFeatureDensity(d float64) {
	if m == nil {
		return
	}
	m.statsDensity.Set(d)
}
