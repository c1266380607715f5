package cache

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/gweta-core/internal/model"
)

// Stats wraps model.CacheStats with a mutex so the graph runtime's
// concurrent request handlers can record hits/misses safely, and exports the
// running hit rate as a Prometheus gauge.
type Stats struct {
	mu   sync.Mutex
	data model.CacheStats

	hitRateGauge prometheus.Gauge
}

// NewStats creates a Stats tracker and registers its hit-rate gauge. When an
// earlier Stats already registered the gauge, the registered one is reused.
func NewStats() *Stats {
	s := &Stats{
		hitRateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gweta",
			Subsystem: "cache",
			Name:      "hit_rate",
			Help:      "Fraction of query-cache lookups served from exact or semantic cache.",
		}),
	}
	if err := prometheus.Register(s.hitRateGauge); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if g, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				s.hitRateGauge = g
			}
		}
	}
	return s
}

// RecordHit increments the counter for the given level and refreshes the
// exported hit-rate gauge.
func (s *Stats) RecordHit(level model.CacheLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch level {
	case model.CacheLevelExact:
		s.data.ExactHits++
	case model.CacheLevelSemantic:
		s.data.SemanticHits++
	case model.CacheLevelIntent:
		s.data.IntentHits++
	case model.CacheLevelEmbedding:
		s.data.EmbeddingHits++
	}
	s.hitRateGauge.Set(s.data.HitRate())
}

// RecordMiss increments the miss counter and refreshes the gauge.
func (s *Stats) RecordMiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Misses++
	s.hitRateGauge.Set(s.data.HitRate())
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() model.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}
