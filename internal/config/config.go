// Package config loads the tunables of the Gweta query core from
// environment variables, following the donor's flat Config+Load() pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable named in spec §9, plus the per-node timeout
// budgets of §5 and the GCP/Postgres/Redis connection settings needed to
// wire the concrete providers. It is immutable after Load() returns.
type Config struct {
	Port        int
	Environment string

	DatabaseURL      string
	DatabaseMaxConns int
	RedisURL         string

	GCPProject        string
	VertexAILocation  string
	VertexAIModel     string
	EmbeddingLocation string
	EmbeddingModel    string
	GCSBucketName     string

	BYOLLMAPIKey  string
	BYOLLMBaseURL string
	BYOLLMModel   string

	// §9 tunables
	CacheEnabled           bool
	SimilarityThreshold    float64
	DefaultTTL             time.Duration
	ShortTermWindow        int
	MemoryTokenSplit       float64 // fraction allotted to short-term memory; long-term gets the rest
	IterationCap           int
	QualityThreshold       float64
	DiversityCapRatio      float64
	ParentFetchConcurrency int
	RequestDeadline        time.Duration

	// §5 per-node timeout budgets
	RetrievalTimeout   time.Duration
	RerankTimeout      time.Duration
	ParentExpandTimeout time.Duration
	SynthesisTimeout   time.Duration
	QualityTimeout     time.Duration
	ParentFetchTimeout time.Duration

	CachePoolSize int
}

// Load reads configuration from environment variables. DATABASE_URL and
// GOOGLE_CLOUD_PROJECT are required; everything else has a default matching
// the values named in spec §4/§5/§9.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}
	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required")
	}

	cfg := &Config{
		Port:             envInt("PORT", 8080),
		Environment:      envStr("ENVIRONMENT", "development"),
		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),
		RedisURL:         envStr("REDIS_URL", "redis://localhost:6379/0"),

		GCPProject:        gcpProject,
		VertexAILocation:  envStr("VERTEX_AI_LOCATION", "global"),
		VertexAIModel:     envStr("VERTEX_AI_MODEL", "gemini-3-pro-preview"),
		EmbeddingLocation: envStr("VERTEX_AI_EMBEDDING_LOCATION", "us-east4"),
		EmbeddingModel:    envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),
		GCSBucketName:     envStr("GCS_BUCKET_NAME", ""),

		BYOLLMAPIKey:  envStr("BYOLLM_API_KEY", ""),
		BYOLLMBaseURL: envStr("BYOLLM_BASE_URL", ""),
		BYOLLMModel:   envStr("BYOLLM_MODEL", ""),

		CacheEnabled:           envBool("CACHE_ENABLED", true),
		SimilarityThreshold:    envFloat("SEMANTIC_CACHE_SIMILARITY_THRESHOLD", 0.95),
		DefaultTTL:             envDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		ShortTermWindow:        envInt("SHORT_TERM_WINDOW", 20),
		MemoryTokenSplit:       envFloat("MEMORY_TOKEN_SPLIT", 0.70),
		IterationCap:           envInt("REFINEMENT_ITERATION_CAP", 2),
		QualityThreshold:       envFloat("QUALITY_THRESHOLD", 0.8),
		DiversityCapRatio:      envFloat("DIVERSITY_CAP_RATIO", 0.40),
		ParentFetchConcurrency: envInt("PARENT_FETCH_CONCURRENCY", 8),
		RequestDeadline:        envDuration("REQUEST_DEADLINE", 30*time.Second),

		RetrievalTimeout:    envDuration("NODE_TIMEOUT_RETRIEVAL", 3*time.Second),
		RerankTimeout:       envDuration("NODE_TIMEOUT_RERANK", 3*time.Second),
		ParentExpandTimeout: envDuration("NODE_TIMEOUT_PARENT_EXPAND", 2*time.Second),
		SynthesisTimeout:    envDuration("NODE_TIMEOUT_SYNTHESIS", 15*time.Second),
		QualityTimeout:      envDuration("NODE_TIMEOUT_QUALITY", 5*time.Second),
		ParentFetchTimeout:  envDuration("PARENT_FETCH_TIMEOUT", 2*time.Second),

		CachePoolSize: envInt("CACHE_POOL_SIZE", 20),
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
