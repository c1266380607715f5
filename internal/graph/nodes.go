package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/connexus-ai/gweta-core/internal/cache"
	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/retrieval"
	"github.com/connexus-ai/gweta-core/internal/service"
)

// nodeTiming wraps a node body, logging and (when metrics are wired)
// observing its latency — the donor's pipeline.go per-step slog.Info idiom,
// generalized to a single wrapper instead of one log line per call site.
func (g *Graph) nodeTiming(node string, fn func()) {
	start := time.Now()
	fn()
	if g.Metrics != nil {
		g.Metrics.NodeDuration.WithLabelValues(node).Observe(time.Since(start).Seconds())
	}
}

// intentClassify runs the two-tier intent classifier and seeds
// state.intent/complexity/user_type/legal_areas (spec §4.7).
func (g *Graph) intentClassify(ctx context.Context, st *model.AgentState, profile *model.UserProfile) {
	g.nodeTiming("intent_classify", func() {
		result := g.Intent.Classify(ctx, st.RawQuery, profile)
		st.Intent = &result.Intent
		st.Complexity = result.Complexity
		st.UserType = result.UserType
		st.LegalAreas = result.LegalAreas
		retrievalTopK, rerankTopK := retrieval.AdaptiveTopK(result.Complexity)
		st.RetrievalTopK = retrievalTopK
		st.RerankTopK = rerankTopK
		slog.Info("[GRAPH] intent classified", "trace_id", st.TraceID, "intent", result.Intent, "complexity", result.Complexity, "method", result.Method)
	})
}

// memoryFetch fetches short-term + long-term context in parallel and merges
// it into state.memory_context (spec §4.14).
func (g *Graph) memoryFetch(ctx context.Context, st *model.AgentState) {
	g.nodeTiming("memory_fetch", func() {
		if g.Memory == nil {
			return
		}
		budget := g.MemoryTokenBudget
		if budget <= 0 {
			budget = 800
		}
		mc := g.Memory.FetchContext(ctx, st.SessionID, st.UserID, budget)
		if mc != "" {
			st.MemoryContext = &mc
		}
	})
}

// queryRewrite resolves pronouns/ellipsis and expands jargon against the
// short-term window (spec §4.8).
func (g *Graph) queryRewrite(ctx context.Context, st *model.AgentState) {
	g.nodeTiming("query_rewrite", func() {
		if g.ShortTerm == nil {
			return
		}
		shortTerm := g.ShortTerm.Get(ctx, st.SessionID)
		rewritten := service.RewriteQuery(st.RawQuery, shortTerm)
		if rewritten != st.RawQuery {
			st.RewrittenQuery = &rewritten
		}
	})
}

// effectiveQuery returns the rewritten query when one was produced,
// otherwise the raw query — the single point every downstream node reads
// the "query to use" through.
func effectiveQuery(st *model.AgentState) string {
	if st.RewrittenQuery != nil {
		return *st.RewrittenQuery
	}
	return st.RawQuery
}

// cacheLookup checks the exact and semantic response caches (spec §4.13).
// On a hit it populates state.final_answer directly; callers must check
// that before continuing to retrieval.
func (g *Graph) cacheLookup(ctx context.Context, st *model.AgentState) {
	g.nodeTiming("cache_lookup", func() {
		if g.Cache == nil {
			return
		}
		normalized := cache.NormalizeQuery(effectiveQuery(st))
		if answer, ok := g.Cache.GetExact(ctx, normalized, st.UserType); ok {
			st.FinalAnswer = answer
			return
		}
		if g.Embedder == nil {
			return
		}
		vecs, err := g.Embedder.Embed(ctx, []string{normalized})
		if err != nil || len(vecs) == 0 {
			return
		}
		if answer, ok := g.Cache.GetSemantic(ctx, st.UserType, vecs[0]); ok {
			st.FinalAnswer = answer
		}
	})
}

// retrieveParallel invokes the lexical and dense retrievers concurrently
// with independent top-k, both scaled to state.retrieval_top_k (spec §4.3).
func (g *Graph) retrieveParallel(ctx context.Context, st *model.AgentState, query string, topK int) (lexical, dense []model.RetrievalResult) {
	g.nodeTiming("retrieve_parallel", func() {
		type result struct {
			kind string
			res  []model.RetrievalResult
		}
		resultsCh := make(chan result, 2)

		go func() {
			if g.Lexical == nil {
				resultsCh <- result{"lexical", nil}
				return
			}
			r, err := g.Lexical.Search(ctx, query, topK)
			if err != nil {
				slog.Warn("[GRAPH] lexical retrieval failed", "trace_id", st.TraceID, "error", err)
				r = nil
			}
			resultsCh <- result{"lexical", r}
		}()

		go func() {
			if g.Dense == nil || g.Embedder == nil {
				resultsCh <- result{"dense", nil}
				return
			}
			vecs, err := g.Embedder.Embed(ctx, []string{query})
			if err != nil || len(vecs) == 0 {
				resultsCh <- result{"dense", nil}
				return
			}
			r, err := g.Dense.Search(ctx, vecs[0], topK)
			if err != nil {
				slog.Warn("[GRAPH] dense retrieval failed", "trace_id", st.TraceID, "error", err)
				r = nil
			}
			resultsCh <- result{"dense", r}
		}()

		for i := 0; i < 2; i++ {
			r := <-resultsCh
			switch r.kind {
			case "lexical":
				lexical = r.res
			case "dense":
				dense = r.res
			}
		}
	})
	return lexical, dense
}

// mergeNode runs reciprocal-rank-fusion style merge over the two retrieval
// lists (spec §4.3).
func (g *Graph) mergeNode(st *model.AgentState, lexical, dense []model.RetrievalResult) {
	g.nodeTiming("merge", func() {
		st.CombinedResults = retrieval.Merge(lexical, dense)
	})
}

// rerankNode cross-encoder reranks the merged candidates with diversity
// filtering (spec §4.4).
func (g *Graph) rerankNode(ctx context.Context, st *model.AgentState, query string, candidates []model.RetrievalResult) {
	g.nodeTiming("rerank", func() {
		result := retrieval.Rerank(ctx, g.CrossEncoder, query, candidates, st.RerankTopK, g.DiversityCapRatio)
		st.RerankedResults = result.Results
		if result.Method != "cross_encoder" {
			st.QualityIssues = append(st.QualityIssues, "rerank_fallback:"+result.Method)
		}
	})
}

// selectTopK truncates to rerank_top_k and copies the rerank score onto each
// chunk's Confidence field, so downstream consumers (quality gate,
// citations) have a single confidence figure to read off the Chunk itself
// rather than the transient RetrievalResult wrapper.
func (g *Graph) selectTopK(st *model.AgentState) {
	g.nodeTiming("select_topk", func() {
		n := st.RerankTopK
		if n <= 0 || n > len(st.RerankedResults) {
			n = len(st.RerankedResults)
		}
		chunks := make([]model.Chunk, 0, n)
		for i := 0; i < n; i++ {
			c := st.RerankedResults[i].Chunk
			score := st.RerankedResults[i].RerankScore
			c.Confidence = &score
			chunks = append(chunks, c)
		}
		st.SelectedChunks = chunks
	})
}

// parentExpand fetches the full parent document for each selected chunk
// with a bounded concurrent pool (spec §4.8).
func (g *Graph) parentExpand(ctx context.Context, st *model.AgentState) {
	g.nodeTiming("parent_expand", func() {
		if g.ParentStore == nil {
			st.BundledContext = st.SelectedChunks
			return
		}
		selected := make([]model.RetrievalResult, len(st.SelectedChunks))
		for i, c := range st.SelectedChunks {
			selected[i] = model.RetrievalResult{Chunk: c}
		}
		expanded := retrieval.ExpandParents(ctx, g.ParentStore, selected, g.ParentFetchConcurrency, g.ParentFetchTimeout)
		chunks := make([]model.Chunk, len(expanded))
		for i, e := range expanded {
			chunks[i] = e.Chunk
		}
		st.BundledContext = chunks
	})
}

// synthesizeNode produces the draft or refined answer (spec §4.9/§4.11).
func (g *Graph) synthesizeNode(ctx context.Context, st *model.AgentState, instructions []string) error {
	var err error
	g.nodeTiming("synthesize", func() {
		memCtx := ""
		if st.MemoryContext != nil {
			memCtx = *st.MemoryContext
		}
		opts := service.SynthesizeOpts{
			Complexity:    st.Complexity,
			UserType:      st.UserType,
			MemoryContext: memCtx,
			Instructions:  instructions,
		}
		if st.Intent != nil {
			opts.Intent = *st.Intent
		}
		st.Synthesis, err = g.Synthesizer.Synthesize(ctx, effectiveQuery(st), st.BundledContext, opts)
	})
	return err
}

// qualityGateNode runs the three parallel checkers and routes to the next
// step per the decision function (spec §4.10).
func (g *Graph) qualityGateNode(ctx context.Context, st *model.AgentState) (*service.QualityReport, error) {
	var report *service.QualityReport
	var err error
	g.nodeTiming("quality_gate", func() {
		report, err = g.Quality.Evaluate(ctx, effectiveQuery(st), st.Synthesis, st.BundledContext, st.Complexity, st.RefinementIteration)
	})
	if err != nil {
		return nil, err
	}
	confidence := report.QualityConfidence
	passed := report.Decision == service.DecisionPass
	st.QualityConfidence = &confidence
	st.QualityPassed = &passed
	if g.Metrics != nil {
		g.Metrics.QualityGateOutcomes.WithLabelValues(string(report.Decision)).Inc()
		g.Metrics.QualityConfidence.Observe(confidence)
	}
	return report, nil
}

// selfCriticNode produces refinement guidance from a failing draft (spec
// §4.11).
func (g *Graph) selfCriticNode(ctx context.Context, st *model.AgentState, report *service.QualityReport) ([]string, error) {
	var critique service.SelfCritique
	var err error
	g.nodeTiming("self_critic", func() {
		critique, err = g.Critic.Critique(ctx, st.Synthesis, report)
	})
	if err != nil {
		return nil, err
	}
	st.RefinementInstructions = critique.RefinementInstructions
	st.PriorityFixes = critique.PriorityFixes
	st.SuggestedAdditions = critique.SuggestedAdditions
	return service.RefinedInstructions(critique), nil
}

// gapRetrieveNode generates a gap query from the quality report, retrieves
// additional candidates, de-duplicates against the existing bundle, and
// returns them for the caller to splice back in before looping to rerank
// (spec §4.12).
func (g *Graph) gapRetrieveNode(ctx context.Context, st *model.AgentState, report *service.QualityReport) []model.RetrievalResult {
	var candidates []model.RetrievalResult
	g.nodeTiming("gap_retrieve", func() {
		gapQuery := service.GapQuery(effectiveQuery(st), report)
		topK := service.GapRetrievalTopK(st.RetrievalTopK)
		lexical, dense := g.retrieveParallel(ctx, st, gapQuery, topK)
		merged := retrieval.Merge(lexical, dense)
		deduped := make([]model.Chunk, 0, len(merged))
		for _, r := range merged {
			deduped = append(deduped, r.Chunk)
		}
		kept := service.DedupeAgainstBundle(deduped, st.BundledContext)
		for _, c := range kept {
			candidates = append(candidates, model.RetrievalResult{Chunk: c})
		}
	})
	return candidates
}

// composeFinal builds the terminal Answer from the current synthesis and
// quality state (spec §6's run_query response shape).
func composeFinal(st *model.AgentState, warnings []string) *model.Answer {
	if st.Synthesis == nil {
		return &model.Answer{
			Kind:      model.AnswerDegraded,
			DegradedReason: "no synthesis was produced",
			TraceID:   st.TraceID,
			RequestID: st.RequestID,
		}
	}
	citations := make([]model.Citation, 0, len(st.Synthesis.Citations))
	byID := make(map[string]model.Chunk, len(st.BundledContext))
	for _, c := range st.BundledContext {
		byID[c.ChunkID] = c
	}
	for _, id := range st.Synthesis.Citations {
		c, ok := byID[id]
		title := ""
		url := ""
		if ok {
			title = c.SectionPath
			url = c.SourceURL
		}
		citations = append(citations, model.Citation{ChunkID: id, Title: title, URL: url})
	}

	confidence := 0.0
	if st.QualityConfidence != nil {
		confidence = *st.QualityConfidence
	}

	kind := model.AnswerGrounded
	if st.QualityPassed != nil && !*st.QualityPassed {
		kind = model.AnswerDegraded
	}

	processingMs := int64(0)
	if !st.StartedAt.IsZero() {
		processingMs = time.Since(st.StartedAt).Milliseconds()
	}

	return &model.Answer{
		Kind:              kind,
		Synthesis:         st.Synthesis,
		Citations:         citations,
		QualityConfidence: confidence,
		ProcessingTimeMs:  processingMs,
		Suggestions:       nil,
		TraceID:           st.TraceID,
		RequestID:         st.RequestID,
		Warnings:          warnings,
	}
}
