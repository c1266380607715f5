package model

import "time"

// CacheLevel names one of the four cache tiers of §4.13.
type CacheLevel string

const (
	CacheLevelExact     CacheLevel = "exact"
	CacheLevelSemantic  CacheLevel = "semantic"
	CacheLevelIntent    CacheLevel = "intent"
	CacheLevelEmbedding CacheLevel = "embedding"
)

// CacheEntry is a single stored value at any cache level, with the
// bookkeeping needed to compute hit rate and recency.
type CacheEntry struct {
	Key       string    `json:"key"`
	Level     CacheLevel `json:"level"`
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SemanticIndexEntry is one member of a user_type-scoped semantic cache
// index: an embedding vector plus the exact-cache key it maps to, searched
// by cosine similarity (≥0.95 per §4.13) rather than exact key match.
type SemanticIndexEntry struct {
	Key       string    `json:"key"`
	UserType  UserType  `json:"user_type"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheStats tracks aggregate hit/miss counters in-process so hit_rate can
// be computed and exported as a gauge without a round trip to the cache
// backend itself.
type CacheStats struct {
	ExactHits     int64 `json:"exact_hits"`
	SemanticHits  int64 `json:"semantic_hits"`
	IntentHits    int64 `json:"intent_hits"`
	EmbeddingHits int64 `json:"embedding_hits"`
	Misses        int64 `json:"misses"`
}

// HitRate returns (exact+semantic)/total per §4.13's definition. It excludes
// intent and embedding hits from the numerator since those are sub-pipeline
// caches, not full-answer cache hits.
func (s CacheStats) HitRate() float64 {
	total := s.ExactHits + s.SemanticHits + s.IntentHits + s.EmbeddingHits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.ExactHits+s.SemanticHits) / float64(total)
}
