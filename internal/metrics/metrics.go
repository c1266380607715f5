// Package metrics exposes the Prometheus collectors for the query core's
// graph runtime, grounded on the donor's internal/middleware/monitoring.go
// NewMetrics(reg)/MustRegister idiom, adapted from HTTP request metrics to
// per-node latency, cache hit-rate, quality-gate outcomes, and
// self-correction iteration counts (SPEC_FULL.md's DOMAIN STACK table entry
// for prometheus/client_golang).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the query core registers.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	NodeDuration        *prometheus.HistogramVec
	NodeErrorsTotal     *prometheus.CounterVec
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    prometheus.Counter
	CacheHitRate        prometheus.Gauge
	QualityGateOutcomes *prometheus.CounterVec
	QualityConfidence   prometheus.Histogram
	RefinementIterations prometheus.Histogram
	SilenceTriggers     prometheus.Counter
	ActiveRequests      prometheus.Gauge
}

// NewMetrics creates and registers the collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gweta_requests_total",
				Help: "Total number of run_query/stream_query invocations by outcome.",
			},
			[]string{"kind", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gweta_request_duration_seconds",
				Help:    "End-to-end request latency in seconds.",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
			},
			[]string{"kind"},
		),
		NodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gweta_node_duration_seconds",
				Help:    "Per-node latency in the agent graph runtime.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"node"},
		),
		NodeErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gweta_node_errors_total",
				Help: "Total number of node-level errors by node and recoverability.",
			},
			[]string{"node", "recoverable"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gweta_cache_hits_total",
				Help: "Total cache hits by level (exact, semantic, intent, embedding).",
			},
			[]string{"level"},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gweta_cache_misses_total",
				Help: "Total cache lookups that missed at every level.",
			},
		),
		CacheHitRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gweta_cache_hit_rate",
				Help: "Rolling cache hit-rate across all levels, per CacheStats.HitRate.",
			},
		),
		QualityGateOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gweta_quality_gate_outcomes_total",
				Help: "Total quality-gate decisions by outcome (pass, refine_synthesis, retrieve_more, fail).",
			},
			[]string{"decision"},
		),
		QualityConfidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gweta_quality_confidence",
				Help:    "Distribution of the aggregate quality_confidence score.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		RefinementIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gweta_refinement_iterations",
				Help:    "Number of self-correction iterations a request consumed before pass/fail.",
				Buckets: []float64{0, 1, 2},
			},
		),
		SilenceTriggers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gweta_silence_triggers_total",
				Help: "Total number of low-confidence no-sources answers returned.",
			},
		),
		ActiveRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gweta_active_requests",
				Help: "Number of currently in-flight requests.",
			},
		),
	}

	reg.MustRegister(
		m.RequestsTotal, m.RequestDuration, m.NodeDuration, m.NodeErrorsTotal,
		m.CacheHitsTotal, m.CacheMissesTotal, m.CacheHitRate,
		m.QualityGateOutcomes, m.QualityConfidence, m.RefinementIterations,
		m.SilenceTriggers, m.ActiveRequests,
	)
	return m
}

// ObserveCacheStats updates the hit-rate gauge and per-level counters from
// the fields of a model.CacheStats snapshot. Nothing in the graph runtime
// calls it at present.
func (m *Metrics) ObserveCacheStats(exactHits, semanticHits, intentHits, embeddingHits, misses int64, hitRate float64) {
	if exactHits > 0 {
		m.CacheHitsTotal.WithLabelValues("exact").Add(float64(exactHits))
	}
	if semanticHits > 0 {
		m.CacheHitsTotal.WithLabelValues("semantic").Add(float64(semanticHits))
	}
	if intentHits > 0 {
		m.CacheHitsTotal.WithLabelValues("intent").Add(float64(intentHits))
	}
	if embeddingHits > 0 {
		m.CacheHitsTotal.WithLabelValues("embedding").Add(float64(embeddingHits))
	}
	if misses > 0 {
		m.CacheMissesTotal.Add(float64(misses))
	}
	m.CacheHitRate.Set(hitRate)
}

// RecordNodeError records a node-level failure, tagging whether the error
// is recoverable (the graph degrades) or fatal (the request fails).
func (m *Metrics) RecordNodeError(node string, recoverable bool) {
	label := "false"
	if recoverable {
		label = "true"
	}
	m.NodeErrorsTotal.WithLabelValues(node, label).Inc()
}
