package retrieval

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

// confidenceFloor is the minimum normalized cross-encoder score a chunk must
// clear to survive into reranked_results (§4.4).
const confidenceFloor = 0.3

// RerankResult is the reranked list plus the method actually used, so
// callers/metrics can distinguish a healthy cross-encoder pass from the
// degraded fallback.
type RerankResult struct {
	Results []model.RetrievalResult
	Method  string // "cross_encoder" | "fallback_score_sort"
}

// Rerank scores each candidate with the cross-encoder, min-max normalizes
// the scores, drops anything below confidenceFloor, applies the per-
// parent_doc_id diversity cap, and truncates to topK. On cross-encoder
// error it falls back to sorting by the sum of each candidate's dense and
// lexical retriever scores and reports rerank_method="fallback_score_sort"
// rather than failing the request.
func Rerank(ctx context.Context, ce providers.CrossEncoder, query string, candidates []model.RetrievalResult, topK int, diversityCapRatio float64) RerankResult {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Chunk.Text
	}

	start := time.Now()
	scores, err := ce.Score(ctx, query, texts)
	if err != nil || len(scores) != len(candidates) {
		slog.Warn("[DEBUG-RERANK] cross-encoder failed, falling back to score sort", "error", err)
		return fallbackScoreSort(candidates, topK)
	}

	normalized := minMaxNormalize(scores)
	for i := range candidates {
		candidates[i].RerankScore = normalized[i]
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RerankScore > candidates[j].RerankScore
	})

	var survivors []model.RetrievalResult
	for _, c := range candidates {
		if c.RerankScore >= confidenceFloor {
			survivors = append(survivors, c)
		}
	}

	capped := applyDiversityCap(survivors, topK, diversityCapRatio)
	if len(capped) > topK {
		capped = capped[:topK]
	}

	slog.Info("[Rerank Latency]", "rerank_method", "cross_encoder", "rerank_ms", time.Since(start).Milliseconds(),
		"candidates", len(candidates), "survivors", len(capped))

	return RerankResult{Results: capped, Method: "cross_encoder"}
}

func fallbackScoreSort(candidates []model.RetrievalResult, topK int) RerankResult {
	sorted := make([]model.RetrievalResult, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return mergeScore(sorted[i]) > mergeScore(sorted[j])
	})
	if len(sorted) > topK {
		sorted = sorted[:topK]
	}
	return RerankResult{Results: sorted, Method: "fallback_score_sort"}
}

func mergeScore(r model.RetrievalResult) float64 {
	return r.DenseScore + r.LexicalScore
}

func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	min, max := scores[0], scores[0]
	for _, s := range scores {
		min = math.Min(min, s)
		max = math.Max(max, s)
	}
	out := make([]float64, len(scores))
	if max == min {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}

// applyDiversityCap caps the number of chunks from any single parent
// document at ceil(diversityCapRatio * topK), so one long judgment can't
// dominate the synthesizer's context window. Excess lower-ranked duplicates
// are skipped first, then the remainder is backfilled from those skipped
// candidates, in their original (rank) order, to reach topK if available
// (§4.4 step 4) — the cap shapes diversity, it doesn't shrink the result
// set below topK when enough candidates exist to fill it.
func applyDiversityCap(results []model.RetrievalResult, topK int, diversityCapRatio float64) []model.RetrievalResult {
	cap := int(math.Ceil(diversityCapRatio * float64(topK)))
	if cap < 1 {
		cap = 1
	}

	counts := make(map[string]int)
	out := make([]model.RetrievalResult, 0, len(results))
	var skipped []model.RetrievalResult
	for _, r := range results {
		if counts[r.Chunk.ParentDocID] >= cap {
			skipped = append(skipped, r)
			continue
		}
		counts[r.Chunk.ParentDocID]++
		out = append(out, r)
	}

	for _, r := range skipped {
		if len(out) >= topK {
			break
		}
		out = append(out, r)
	}
	return out
}
