// Package metrics exposes Prometheus collectors for ingestion and enrichment.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	fetches    *prometheus.CounterVec
	records    *prometheus.CounterVec
	enrichment *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New creates the collectors under namespace and registers them with reg.
// It panics on duplicate registration, like prometheus.MustRegister.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_fetches_total",
				Help:      "Source fetches by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingested_records_total",
				Help:      "Parsed records by provider and result (inserted, skipped).",
			},
			[]string{"provider", "result"},
		),
		enrichment: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrichment_calls_total",
				Help:      "Enrichment calls by capability and outcome.",
			},
			[]string{"capability", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_duration_seconds",
				Help:      "Duration of ingestion runs by provider.",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"provider"},
		),
	}
	reg.MustRegister(m.fetches, m.records, m.enrichment, m.duration)
	return m
}

// ObserveFetch counts a source fetch. outcome is "ok" or "failed".
func (m *Metrics) ObserveFetch(provider, outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(provider, outcome).Inc()
}

// AddRecords counts n parsed records with the given result.
func (m *Metrics) AddRecords(provider, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.WithLabelValues(provider, result).Add(float64(n))
}

// ObserveEnrichment counts an enrichment call. outcome is "ok", "empty" or "failed".
func (m *Metrics) ObserveEnrichment(capability, outcome string) {
	if m == nil {
		return
	}
	m.enrichment.WithLabelValues(capability, outcome).Inc()
}

// ObserveIngest records how long an ingestion run took.
func (m *Metrics) ObserveIngest(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(provider).Observe(d.Seconds())
}
