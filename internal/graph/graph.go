// Package graph implements the agent graph runtime of spec §3/§5: a
// single-writer AgentState threaded through a fixed sequence of nodes, with
// one conditional branch point (the quality gate) and a bounded refinement
// loop back to rerank via gap_retrieve. It is grounded on the donor's
// internal/service/pipeline.go step-ordered orchestration (per-step
// slog.Info, fmt.Errorf("pkg.Func: step: %w", err) wrapping, non-fatal vs
// fatal distinction) and internal/tools/executor.go's bounded-concurrency
// shape, generalized from a one-shot ingestion pipeline to a looping,
// branching query pipeline.
package graph

import (
	"time"

	"github.com/connexus-ai/gweta-core/internal/cache"
	"github.com/connexus-ai/gweta-core/internal/memory"
	"github.com/connexus-ai/gweta-core/internal/metrics"
	"github.com/connexus-ai/gweta-core/internal/providers"
	"github.com/connexus-ai/gweta-core/internal/service"
)

// Graph holds every collaborator a node might call, wired once at startup
// and shared across concurrent requests (spec §5: "parallel across
// requests").
type Graph struct {
	Lexical      providers.LexicalRetriever
	Dense        providers.DenseRetriever
	Embedder     providers.Embedder
	CrossEncoder providers.CrossEncoder
	ParentStore  providers.ParentStore

	Cache     *cache.QueryCache
	Memory    *memory.Coordinator
	ShortTerm *memory.ShortTermStore
	LongTerm  *memory.LongTermStore

	Intent      *service.IntentClassifier
	Synthesizer *service.Synthesizer
	Quality     *service.QualityGate
	Critic      *service.SelfCritic

	Metrics *metrics.Metrics

	DiversityCapRatio      float64
	ParentFetchConcurrency int
	ParentFetchTimeout     time.Duration
	// IterationCap is copied from configuration but is not read by the
	// graph; the quality gate applies its own fixed cap of 2
	// (maxRefinementIterations in internal/service/quality.go).
	IterationCap      int
	MemoryTokenBudget int
}

// New constructs a Graph. Metrics may be nil to disable instrumentation
// (e.g. in tests).
func New(
	lexical providers.LexicalRetriever,
	dense providers.DenseRetriever,
	embedder providers.Embedder,
	crossEncoder providers.CrossEncoder,
	parentStore providers.ParentStore,
	qcache *cache.QueryCache,
	mem *memory.Coordinator,
	shortTerm *memory.ShortTermStore,
	longTerm *memory.LongTermStore,
	intent *service.IntentClassifier,
	synth *service.Synthesizer,
	quality *service.QualityGate,
	critic *service.SelfCritic,
	m *metrics.Metrics,
) *Graph {
	return &Graph{
		Lexical:                lexical,
		Dense:                  dense,
		Embedder:               embedder,
		CrossEncoder:           crossEncoder,
		ParentStore:            parentStore,
		Cache:                  qcache,
		Memory:                 mem,
		ShortTerm:              shortTerm,
		LongTerm:               longTerm,
		Intent:                 intent,
		Synthesizer:            synth,
		Quality:                quality,
		Critic:                 critic,
		Metrics:                m,
		DiversityCapRatio:      0.40,
		ParentFetchConcurrency: 8,
		ParentFetchTimeout:     2 * time.Second,
		IterationCap:           2,
		MemoryTokenBudget:      800,
	}
}
