// Package providers declares the external-collaborator interfaces consumed
// by the Gweta query core (spec §6): retrieval backends, embedding and LLM
// providers, blob storage, the multi-level cache, and the user profile
// store. Concrete adapters live in the providers subpackages
// (vertexembed, vertexllm, byollm, gcsblob) and internal/retrieval,
// internal/cache, internal/service.
package providers

import (
	"context"

	"github.com/connexus-ai/gweta-core/internal/model"
)

// LexicalRetriever performs Postgres full-text (BM25-style) search.
type LexicalRetriever interface {
	Search(ctx context.Context, query string, topK int) ([]model.RetrievalResult, error)
}

// DenseRetriever performs pgvector cosine similarity search.
type DenseRetriever interface {
	Search(ctx context.Context, queryVec []float32, topK int) ([]model.RetrievalResult, error)
}

// Embedder converts text to a dense vector.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CrossEncoder scores a (query, chunk) pair for reranking.
type CrossEncoder interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// LLM generates and streams completions.
type LLM interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Stream(ctx context.Context, systemPrompt, userPrompt string) (<-chan string, <-chan error)
}

// BlobStore fetches opaque content (e.g. parent document markdown/PDF) by key.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Cache is the KV+Vector contract backing all four cache levels of §4.13.
// It mirrors a Redis-shaped API deliberately: get/set/expire for plain keys,
// sadd/smembers for the semantic-index membership sets.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Expire(ctx context.Context, key string, ttlSeconds int) error
	SAdd(ctx context.Context, set string, members ...string) error
	SMembers(ctx context.Context, set string) ([]string, error)
}

// ProfileStore persists long-term UserProfile records.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*model.UserProfile, error)
	Update(ctx context.Context, profile *model.UserProfile) error
}

// ParentStore fetches a ParentDocument by ID for small-to-big expansion.
type ParentStore interface {
	GetParent(ctx context.Context, parentDocID string) (*model.ParentDocument, error)
}
