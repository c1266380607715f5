package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/connexus-ai/gweta-core/internal/cache"
	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/service"
	"github.com/connexus-ai/gweta-core/internal/stream"
)

// Run executes the full node sequence for one request and returns the
// terminal Answer (spec §6's run_query). Node order: intent_classify,
// memory_fetch, query_rewrite, cache_lookup, retrieve_parallel, merge,
// rerank, select_topk, parent_expand, synthesize, quality_gate, and then
// either compose_final (pass) or the bounded refine/retrieve_more loop
// (self_critic+refined_synthesize or gap_retrieve+rerank) before
// compose_final, cache_store, memory_update.
func (g *Graph) Run(ctx context.Context, st *model.AgentState) (*model.Answer, error) {
	profile := g.profileFor(ctx, st)
	g.intentClassify(ctx, st, profile)

	if isConversational(st) {
		answer := composeConversational(st)
		st.FinalAnswer = answer
		g.memoryUpdate(ctx, st)
		return answer, nil
	}

	g.memoryFetch(ctx, st)
	g.queryRewrite(ctx, st)

	g.cacheLookup(ctx, st)
	if st.FinalAnswer != nil {
		slog.Info("[GRAPH] cache hit, skipping retrieval", "trace_id", st.TraceID)
		g.memoryUpdate(ctx, st)
		return st.FinalAnswer, nil
	}

	if err := g.retrieveAndRerank(ctx, st, effectiveQuery(st), st.RetrievalTopK); err != nil {
		return nil, fmt.Errorf("graph.Run: %w", err)
	}

	g.selectTopK(st)
	g.parentExpand(ctx, st)

	var warnings []string
	if err := g.synthesizeNode(ctx, st, nil); err != nil {
		return nil, fmt.Errorf("graph.Run: synthesize: %w", err)
	}

refinementLoop:
	for {
		report, err := g.qualityGateNode(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("graph.Run: quality_gate: %w", err)
		}

		switch report.Decision {
		case service.DecisionPass:
			break refinementLoop
		case service.DecisionFail:
			warnings = append(warnings, "quality gate did not pass within the refinement budget")
			break refinementLoop
		case service.DecisionRefineSynthesis:
			st.RefinementIteration++
			instructions, err := g.selfCriticNode(ctx, st, report)
			if err != nil {
				return nil, fmt.Errorf("graph.Run: self_critic: %w", err)
			}
			if err := g.synthesizeNode(ctx, st, instructions); err != nil {
				return nil, fmt.Errorf("graph.Run: refined_synthesize: %w", err)
			}
		case service.DecisionRetrieveMore:
			st.RefinementIteration++
			gapCandidates := g.gapRetrieveNode(ctx, st, report)
			combined := append(append([]model.RetrievalResult{}, toResults(st.BundledContext)...), gapCandidates...)
			g.rerankNode(ctx, st, effectiveQuery(st), combined)
			g.selectTopK(st)
			g.parentExpand(ctx, st)
			if err := g.synthesizeNode(ctx, st, nil); err != nil {
				return nil, fmt.Errorf("graph.Run: synthesize after gap_retrieve: %w", err)
			}
		}
	}

	if g.Metrics != nil {
		g.Metrics.RefinementIterations.Observe(float64(st.RefinementIteration))
	}

	answer := composeFinal(st, warnings)
	st.FinalAnswer = answer

	g.cacheStore(ctx, st, answer)
	g.memoryUpdate(ctx, st)

	return answer, nil
}

// RunStreaming executes the same node sequence as Run but emits the typed
// SSE event grammar of spec §4.15 as each stage completes, and streams
// synthesis tokens as they are produced rather than waiting for the whole
// body.
func (g *Graph) RunStreaming(ctx context.Context, st *model.AgentState, emitter *stream.Emitter) error {
	profile := g.profileFor(ctx, st)
	g.intentClassify(ctx, st, profile)

	meta := stream.MetaPayload{RequestID: st.RequestID, TraceID: st.TraceID}
	if st.Intent != nil {
		meta.Intent = string(*st.Intent)
	}
	meta.Complexity = string(st.Complexity)
	if err := emitter.Meta(meta); err != nil {
		return err
	}

	if isConversational(st) {
		answer := composeConversational(st)
		st.FinalAnswer = answer
		g.memoryUpdate(ctx, st)
		return g.emitFinal(emitter, answer)
	}

	g.memoryFetch(ctx, st)
	g.queryRewrite(ctx, st)

	g.cacheLookup(ctx, st)
	if st.FinalAnswer != nil {
		g.memoryUpdate(ctx, st)
		return g.emitFinal(emitter, st.FinalAnswer)
	}

	if err := g.retrieveAndRerank(ctx, st, effectiveQuery(st), st.RetrievalTopK); err != nil {
		return emitter.Error(model.ErrorCode(err), "retrieval failed")
	}
	_ = emitter.Retrieval(stream.RetrievalPayload{Stage: "rerank", NumResults: len(st.RerankedResults)})

	g.selectTopK(st)
	g.parentExpand(ctx, st)
	_ = emitter.Retrieval(stream.RetrievalPayload{Stage: "parent_expand", NumResults: len(st.BundledContext)})

	if err := g.streamSynthesize(ctx, st, nil, emitter); err != nil {
		return emitter.Error(model.ErrorCode(err), "synthesis failed")
	}

	var warnings []string
streamRefinementLoop:
	for {
		report, err := g.qualityGateNode(ctx, st)
		if err != nil {
			return emitter.Error(model.ErrorCode(err), "quality evaluation failed")
		}
		switch report.Decision {
		case service.DecisionPass:
			break streamRefinementLoop
		case service.DecisionFail:
			warnings = append(warnings, "quality gate did not pass within the refinement budget")
			break streamRefinementLoop
		case service.DecisionRefineSynthesis:
			st.RefinementIteration++
			instructions, err := g.selfCriticNode(ctx, st, report)
			if err != nil {
				return emitter.Error(model.ErrorCode(err), "self-critique failed")
			}
			if err := g.streamSynthesize(ctx, st, instructions, emitter); err != nil {
				return emitter.Error(model.ErrorCode(err), "refined synthesis failed")
			}
		case service.DecisionRetrieveMore:
			st.RefinementIteration++
			gapCandidates := g.gapRetrieveNode(ctx, st, report)
			combined := append(append([]model.RetrievalResult{}, toResults(st.BundledContext)...), gapCandidates...)
			g.rerankNode(ctx, st, effectiveQuery(st), combined)
			g.selectTopK(st)
			g.parentExpand(ctx, st)
			if err := g.streamSynthesize(ctx, st, nil, emitter); err != nil {
				return emitter.Error(model.ErrorCode(err), "synthesis after gap retrieval failed")
			}
		}
	}

	for _, id := range st.Synthesis.Citations {
		for _, c := range st.BundledContext {
			if c.ChunkID == id {
				_ = emitter.Citation(stream.CitationPayload{ChunkID: c.ChunkID, Title: c.SectionPath, URL: c.SourceURL})
				break
			}
		}
	}

	answer := composeFinal(st, warnings)
	st.FinalAnswer = answer
	g.cacheStore(ctx, st, answer)
	g.memoryUpdate(ctx, st)

	return g.emitFinal(emitter, answer)
}

// streamSynthesize uses the streaming LLM surface directly for the
// synthesis attempt, emitting each generated chunk via emitter.Token in
// generation order as it arrives, then parses the accumulated text exactly
// as service.Synthesizer.Synthesize would (spec §4.15's token* stage).
// Falls back to the non-streaming Synthesizer if the streaming call itself
// fails, e.g. because the wired LLM doesn't support streaming.
func (g *Graph) streamSynthesize(ctx context.Context, st *model.AgentState, instructions []string, emitter *stream.Emitter) error {
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
		st.Synthesis, err = g.Synthesizer.SynthesizeStreaming(ctx, effectiveQuery(st), st.BundledContext, opts, func(chunk string) {
			if tokErr := emitter.Token(chunk); tokErr != nil {
				slog.Warn("[GRAPH] token emit failed", "trace_id", st.TraceID, "error", tokErr)
			}
		})
	})
	if err != nil {
		slog.Warn("[GRAPH] streaming synthesis failed, falling back to non-streaming", "trace_id", st.TraceID, "error", err)
		return g.synthesizeNode(ctx, st, instructions)
	}
	return nil
}

// emitFinal sends the terminal success event built from an Answer.
func (g *Graph) emitFinal(emitter *stream.Emitter, answer *model.Answer) error {
	payload := stream.FinalPayload{
		Confidence:       answer.QualityConfidence,
		ProcessingTimeMs: answer.ProcessingTimeMs,
		Warnings:         answer.Warnings,
	}
	if answer.Synthesis != nil {
		payload.TLDR = answer.Synthesis.TLDR
		payload.KeyPoints = answer.Synthesis.KeyPoints
		payload.Body = answer.Synthesis.Body
	}
	return emitter.Final(payload)
}

// retrieveAndRerank runs retrieve_parallel -> merge -> rerank for a given
// query/top-k, the sequence shared by the initial pass and the
// retrieve_more refinement branch.
func (g *Graph) retrieveAndRerank(ctx context.Context, st *model.AgentState, query string, topK int) error {
	lexical, dense := g.retrieveParallel(ctx, st, query, topK)
	g.mergeNode(st, lexical, dense)
	g.rerankNode(ctx, st, query, st.CombinedResults)
	return nil
}

// cacheStore writes the final answer to the exact and semantic caches
// (spec §4.13). Embedding failures degrade to an exact-only write.
func (g *Graph) cacheStore(ctx context.Context, st *model.AgentState, answer *model.Answer) {
	g.nodeTiming("cache_store", func() {
		if g.Cache == nil || answer.Kind == model.AnswerError {
			return
		}
		normalized := cache.NormalizeQuery(effectiveQuery(st))
		g.Cache.SetExact(ctx, normalized, st.UserType, st.Complexity, answer)
		if g.Embedder == nil {
			return
		}
		vecs, err := g.Embedder.Embed(ctx, []string{normalized})
		if err != nil || len(vecs) == 0 {
			return
		}
		g.Cache.SetSemantic(ctx, st.UserType, normalized, vecs[0])
	})
}

// memoryUpdate appends this turn to short-term memory and records the
// query against the long-term profile, both best-effort (spec §4.14: "fire-
// and-forget").
func (g *Graph) memoryUpdate(ctx context.Context, st *model.AgentState) {
	g.nodeTiming("memory_update", func() {
		if g.Memory != nil {
			if err := g.Memory.RecordTurn(ctx, st.SessionID, "user", st.RawQuery); err != nil {
				slog.Warn("[GRAPH] short-term record failed", "trace_id", st.TraceID, "error", err)
			}
			if st.Synthesis != nil {
				if err := g.Memory.RecordTurn(ctx, st.SessionID, "assistant", st.Synthesis.Body); err != nil {
					slog.Warn("[GRAPH] short-term record failed", "trace_id", st.TraceID, "error", err)
				}
			}
		}
		if g.LongTerm != nil {
			if err := g.LongTerm.RecordQuery(ctx, st.UserID, st.LegalAreas, st.UserType); err != nil {
				slog.Warn("[GRAPH] long-term record failed", "trace_id", st.TraceID, "error", err)
			}
		}
	})
}

// profileFor fetches the long-term profile used to bias intent
// classification, degrading to nil (no bias) if long-term memory isn't
// wired.
func (g *Graph) profileFor(ctx context.Context, st *model.AgentState) *model.UserProfile {
	if g.LongTerm == nil {
		return nil
	}
	return g.LongTerm.Get(ctx, st.UserID)
}

// isConversational reports whether the classified intent is conversational
// (greetings, chit-chat, or an empty query) — spec §8's empty-query
// boundary: "classified as conversational; no retrieval performed; helpful
// clarification returned."
func isConversational(st *model.AgentState) bool {
	return st.Intent != nil && *st.Intent == model.IntentConversational
}

// composeConversational builds the clarification answer for a
// conversational query without touching retrieval, synthesis, or the
// quality gate.
func composeConversational(st *model.AgentState) *model.Answer {
	synth := &model.Synthesis{
		TLDR: "Hi — what legal question can I help you with?",
		Body: "I can answer questions about statutes, the constitution, case law, and legal procedure. " +
			"Ask about a specific act, section, right, or situation and I'll find the relevant sources.",
	}
	return &model.Answer{
		Kind:              model.AnswerGrounded,
		Synthesis:         synth,
		QualityConfidence: 1.0,
		TraceID:           st.TraceID,
		RequestID:         st.RequestID,
	}
}

// toResults wraps chunks back into RetrievalResult so gap candidates can be
// merged with the existing bundle before a second rerank pass.
func toResults(chunks []model.Chunk) []model.RetrievalResult {
	out := make([]model.RetrievalResult, len(chunks))
	for i, c := range chunks {
		out[i] = model.RetrievalResult{Chunk: c}
	}
	return out
}
