// Package cache implements the four-level query cache of spec §4.13: exact,
// semantic, intent, and embedding, all backed by the same providers.Cache
// KV+set contract so a single Redis (or in-memory, for tests) backend serves
// all four. The layering mirrors the donor's internal/cache/query.go and
// embedding.go: hash the lookup key, round-trip through a narrow backend
// interface, and treat every backend error as a miss rather than a fatal
// error — a cold or unreachable cache must never fail a request.
package cache

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math"
	"strings"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

// QueryCache fronts the four cache levels for the graph runtime's cache-check
// and cache-write nodes.
type QueryCache struct {
	backend providers.Cache
	stats   *Stats
}

// New creates a QueryCache over the given backend.
func New(backend providers.Cache) *QueryCache {
	return &QueryCache{backend: backend, stats: NewStats()}
}

// Stats exposes the running hit/miss counters, e.g. for a metrics exporter.
func (c *QueryCache) Stats() *Stats { return c.stats }

// exactKey hashes (normalized_query, user_type) per §4.13's exact-cache key.
func exactKey(normalizedQuery string, userType model.UserType) string {
	sum := md5.Sum([]byte(normalizedQuery + "|" + string(userType)))
	return "exact:" + hex.EncodeToString(sum[:])
}

// intentKey hashes normalized_query alone; intent classification doesn't vary
// by user_type.
func intentKey(normalizedQuery string) string {
	sum := md5.Sum([]byte(normalizedQuery))
	return "intent:" + hex.EncodeToString(sum[:])
}

// embeddingKey hashes the raw text being embedded.
func embeddingKey(text string) string {
	sum := md5.Sum([]byte(text))
	return "embedding:" + hex.EncodeToString(sum[:])
}

// NormalizeQuery lowercases and collapses whitespace, matching the donor's
// embedding.go normalization used before hashing.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// GetExact looks up a previously cached final answer for this exact
// (query, user_type) pair. A complexity-adaptive TTL is set by SetExact, not
// read back here; ExpiresAt bookkeeping is the backend's job.
func (c *QueryCache) GetExact(ctx context.Context, normalizedQuery string, userType model.UserType) (*model.Answer, bool) {
	raw, ok, err := c.backend.Get(ctx, exactKey(normalizedQuery, userType))
	if err != nil || !ok {
		if err != nil {
			slog.Warn("[CACHE] exact get failed, treating as miss", "error", err)
		}
		c.stats.RecordMiss()
		return nil, false
	}
	var answer model.Answer
	if err := json.Unmarshal(raw, &answer); err != nil {
		slog.Warn("[CACHE] exact entry corrupt, treating as miss", "error", err)
		c.stats.RecordMiss()
		return nil, false
	}
	c.stats.RecordHit(model.CacheLevelExact)
	return &answer, true
}

// SetExact stores a final answer with a TTL scaled by query complexity:
// simple questions recur most often and change least, so they're kept
// longest; expert questions are the least likely to repeat verbatim and the
// most likely to need a fresher answer, so they're kept shortest (§4.13).
func (c *QueryCache) SetExact(ctx context.Context, normalizedQuery string, userType model.UserType, complexity model.Complexity, answer *model.Answer) {
	raw, err := json.Marshal(answer)
	if err != nil {
		slog.Warn("[CACHE] exact marshal failed, not caching", "error", err)
		return
	}
	ttl := exactTTLSeconds(complexity)
	if err := c.backend.Set(ctx, exactKey(normalizedQuery, userType), raw, ttl); err != nil {
		slog.Warn("[CACHE] exact set failed", "error", err)
	}
}

func exactTTLSeconds(c model.Complexity) int {
	switch c {
	case model.ComplexitySimple:
		return 2 * 3600
	case model.ComplexityModerate:
		return 3600
	case model.ComplexityComplex:
		return 30 * 60
	case model.ComplexityExpert:
		return 15 * 60
	default:
		return 3600
	}
}

// GetIntent looks up a cached intent classification, independent of user
// type, with a fixed 2h TTL set by SetIntent.
func (c *QueryCache) GetIntent(ctx context.Context, normalizedQuery string) (model.Intent, bool) {
	raw, ok, err := c.backend.Get(ctx, intentKey(normalizedQuery))
	if err != nil || !ok {
		c.stats.RecordMiss()
		return "", false
	}
	c.stats.RecordHit(model.CacheLevelIntent)
	return model.Intent(raw), true
}

// SetIntent stores a classified intent for 2 hours.
func (c *QueryCache) SetIntent(ctx context.Context, normalizedQuery string, intent model.Intent) {
	if err := c.backend.Set(ctx, intentKey(normalizedQuery), []byte(intent), 2*3600); err != nil {
		slog.Warn("[CACHE] intent set failed", "error", err)
	}
}

// GetEmbedding looks up a cached embedding vector for a piece of text, with a
// 1h TTL set by SetEmbedding.
func (c *QueryCache) GetEmbedding(ctx context.Context, text string) ([]float32, bool) {
	raw, ok, err := c.backend.Get(ctx, embeddingKey(text))
	if err != nil || !ok {
		c.stats.RecordMiss()
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		c.stats.RecordMiss()
		return nil, false
	}
	c.stats.RecordHit(model.CacheLevelEmbedding)
	return vec, true
}

// SetEmbedding stores an embedding vector for 1 hour.
func (c *QueryCache) SetEmbedding(ctx context.Context, text string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.backend.Set(ctx, embeddingKey(text), raw, 3600); err != nil {
		slog.Warn("[CACHE] embedding set failed", "error", err)
	}
}

// semanticSetName scopes the semantic index membership set per user_type, so
// a citizen's cached answer is never served to a professional's lookalike
// query (the two registers read very differently even for the same facts).
func semanticSetName(userType model.UserType) string {
	return "semantic_index:" + string(userType)
}

// GetSemantic scans the user_type-scoped semantic index for an entry whose
// embedding has cosine similarity >= 0.95 to queryVec, and if found resolves
// it to the underlying exact-cache answer. This is a linear scan over every
// member of the index set; SetSemantic below does not cap the set's size.
func (c *QueryCache) GetSemantic(ctx context.Context, userType model.UserType, queryVec []float32) (*model.Answer, bool) {
	members, err := c.backend.SMembers(ctx, semanticSetName(userType))
	if err != nil || len(members) == 0 {
		c.stats.RecordMiss()
		return nil, false
	}

	var best *model.SemanticIndexEntry
	bestSim := 0.0
	for _, m := range members {
		raw, ok, err := c.backend.Get(ctx, "semantic_entry:"+m)
		if err != nil || !ok {
			continue
		}
		var entry model.SemanticIndexEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		sim := cosineSimilarity(queryVec, entry.Embedding)
		if sim >= semanticSimilarityThreshold && sim > bestSim {
			bestSim = sim
			e := entry
			best = &e
		}
	}
	if best == nil {
		c.stats.RecordMiss()
		return nil, false
	}

	raw, ok, err := c.backend.Get(ctx, best.Key)
	if err != nil || !ok {
		c.stats.RecordMiss()
		return nil, false
	}
	var answer model.Answer
	if err := json.Unmarshal(raw, &answer); err != nil {
		c.stats.RecordMiss()
		return nil, false
	}
	c.stats.RecordHit(model.CacheLevelSemantic)
	return &answer, true
}

const semanticSimilarityThreshold = 0.95

// SetSemantic indexes queryVec alongside the exact-cache key it resolves to,
// so a future lookalike query can hit without an exact string match.
func (c *QueryCache) SetSemantic(ctx context.Context, userType model.UserType, normalizedQuery string, queryVec []float32) {
	entry := model.SemanticIndexEntry{
		Key:       exactKey(normalizedQuery, userType),
		UserType:  userType,
		Embedding: queryVec,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	memberID := memberIDFor(normalizedQuery, userType)
	if err := c.backend.Set(ctx, "semantic_entry:"+memberID, raw, exactTTLSeconds(model.ComplexityModerate)); err != nil {
		slog.Warn("[CACHE] semantic entry set failed", "error", err)
		return
	}
	if err := c.backend.SAdd(ctx, semanticSetName(userType), memberID); err != nil {
		slog.Warn("[CACHE] semantic index sadd failed", "error", err)
	}
}

func memberIDFor(normalizedQuery string, userType model.UserType) string {
	sum := sha256.Sum256([]byte(normalizedQuery + "|" + string(userType)))
	return hex.EncodeToString(sum[:8])
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
