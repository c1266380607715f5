package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/connexus-ai/gweta-core/internal/model"
)

// fakeCrossEncoder returns a fixed score per input index, or an error if
// failNext is true, to exercise both the healthy and fallback rerank paths.
type fakeCrossEncoder struct {
	scores   []float64
	fail     bool
}

func (f *fakeCrossEncoder) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	if f.fail {
		return nil, errors.New("cross-encoder unavailable")
	}
	if len(f.scores) != len(texts) {
		return nil, errors.New("fakeCrossEncoder: mismatched scores/texts")
	}
	return f.scores, nil
}

func candidates(parentIDs ...string) []model.RetrievalResult {
	out := make([]model.RetrievalResult, len(parentIDs))
	for i, pid := range parentIDs {
		out[i] = model.RetrievalResult{
			Chunk: model.Chunk{ChunkID: "c" + string(rune('a'+i)), ParentDocID: pid, Text: "text"},
		}
	}
	return out
}

func TestRerank_MonotonicConfidenceDescending(t *testing.T) {
	ce := &fakeCrossEncoder{scores: []float64{0.2, 0.9, 0.5, 0.7}}
	cands := candidates("p1", "p2", "p3", "p4")

	result := Rerank(context.Background(), ce, "query", cands, 10, 0.40)
	if result.Method != "cross_encoder" {
		t.Fatalf("Method = %q, want cross_encoder", result.Method)
	}
	for i := 0; i+1 < len(result.Results); i++ {
		if result.Results[i].RerankScore < result.Results[i+1].RerankScore {
			t.Fatalf("results not monotonically descending at index %d: %v", i, result.Results)
		}
	}
}

func TestRerank_DiversityCap(t *testing.T) {
	ce := &fakeCrossEncoder{scores: []float64{0.95, 0.9, 0.85, 0.8, 0.75, 0.1}}
	// Three parents with 2 chunks each. The lowest score normalizes to 0 and
	// falls under the confidence floor, leaving 5 survivors (p1, p2, p3, p1,
	// p2): enough diversity that the cap is satisfiable without backfill.
	cands := candidates("p1", "p2", "p3", "p1", "p2", "p3")

	topK := 5
	result := Rerank(context.Background(), ce, "query", cands, topK, 0.40)

	// ceil(0.40 * 5) == 2: no more than 2 results may share a parent_doc_id
	// when enough candidates from other parents exist to fill top_k.
	counts := map[string]int{}
	for _, r := range result.Results {
		counts[r.Chunk.ParentDocID]++
	}
	for pid, n := range counts {
		if n > 2 {
			t.Errorf("parent_doc_id %q contributed %d results, want <= 2", pid, n)
		}
	}
	if len(result.Results) != topK {
		t.Fatalf("len(Results) = %d, want %d", len(result.Results), topK)
	}
}

func TestRerank_DiversityCapBackfillsWhenNoOtherParent(t *testing.T) {
	ce := &fakeCrossEncoder{scores: []float64{0.9, 0.8, 0.7, 0.6, 0.5, 0.1}}
	// 6 candidates all from the same parent document; the lowest score
	// normalizes to 0 and falls under the confidence floor, leaving 5. The
	// cap alone would keep only 2 of those, short of top_k, so the excess
	// must be backfilled in original (rank) order to reach top_k.
	cands := candidates("same-parent", "same-parent", "same-parent", "same-parent", "same-parent", "same-parent")

	topK := 5
	result := Rerank(context.Background(), ce, "query", cands, topK, 0.40)

	if len(result.Results) != topK {
		t.Fatalf("len(Results) = %d, want %d (backfilled from the single parent)", len(result.Results), topK)
	}
	for i, r := range result.Results {
		if r.Chunk.ChunkID != cands[i].Chunk.ChunkID {
			t.Errorf("Results[%d] = %q, want original rank order %q", i, r.Chunk.ChunkID, cands[i].Chunk.ChunkID)
		}
	}
}

func TestRerank_QualityFloorDropsLowScores(t *testing.T) {
	ce := &fakeCrossEncoder{scores: []float64{0.0, 1.0}}
	cands := candidates("p1", "p2")

	result := Rerank(context.Background(), ce, "query", cands, 10, 0.40)
	for _, r := range result.Results {
		if r.Chunk.ParentDocID == "p1" {
			t.Errorf("chunk scoring below the confidence floor after normalization survived: %v", r)
		}
	}
}

func TestRerank_FallbackOnError(t *testing.T) {
	ce := &fakeCrossEncoder{fail: true}
	cands := candidates("p1", "p2")
	cands[0].DenseScore = 0.1
	cands[1].DenseScore = 0.9

	result := Rerank(context.Background(), ce, "query", cands, 10, 0.40)
	if result.Method != "fallback_score_sort" {
		t.Fatalf("Method = %q, want fallback_score_sort", result.Method)
	}
	if len(result.Results) != 2 {
		t.Fatalf("fallback dropped candidates: got %d, want 2", len(result.Results))
	}
	if result.Results[0].Chunk.ParentDocID != "p2" {
		t.Errorf("fallback did not sort by existing score descending")
	}
}
