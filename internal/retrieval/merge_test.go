package retrieval

import (
	"testing"

	"github.com/connexus-ai/gweta-core/internal/model"
)

func chunk(id string) model.Chunk {
	return model.Chunk{ChunkID: id, ParentDocID: "parent-" + id}
}

func TestMerge_DedupesAndKeepsHigherScore(t *testing.T) {
	lexical := []model.RetrievalResult{
		{Chunk: chunk("a"), LexicalRank: 0, LexicalScore: 0.9},
		{Chunk: chunk("b"), LexicalRank: 1, LexicalScore: 0.4},
	}
	dense := []model.RetrievalResult{
		{Chunk: chunk("a"), DenseRank: 0, DenseScore: 0.3},
		{Chunk: chunk("c"), DenseRank: 1, DenseScore: 0.8},
	}

	merged := Merge(lexical, dense)

	seen := map[string]int{}
	for _, r := range merged {
		seen[r.Chunk.ChunkID]++
	}
	if seen["a"] != 1 {
		t.Fatalf("chunk a appears %d times, want exactly 1 (deduped)", seen["a"])
	}
	if len(merged) != 3 {
		t.Fatalf("merged length = %d, want 3 (a, b, c deduped)", len(merged))
	}
}

func TestMerge_RespectsOutputCap(t *testing.T) {
	var lexical, dense []model.RetrievalResult
	for i := 0; i < 10; i++ {
		lexical = append(lexical, model.RetrievalResult{Chunk: chunk("lex" + string(rune('a'+i))), LexicalRank: i, LexicalScore: 1})
	}
	for i := 0; i < 10; i++ {
		dense = append(dense, model.RetrievalResult{Chunk: chunk("dense" + string(rune('a'+i))), DenseRank: i, DenseScore: 1})
	}

	merged := Merge(lexical, dense)
	wantCap := 2 * 10
	if len(merged) > wantCap {
		t.Fatalf("merged length = %d, exceeds cap %d", len(merged), wantCap)
	}
}

func TestMerge_LexicalFirstOnTies(t *testing.T) {
	lexical := []model.RetrievalResult{
		{Chunk: chunk("only-lexical"), LexicalRank: 0, LexicalScore: 0.5},
	}
	dense := []model.RetrievalResult{
		{Chunk: chunk("only-dense"), DenseRank: 0, DenseScore: 0.5},
	}

	merged := Merge(lexical, dense)
	if len(merged) != 2 {
		t.Fatalf("merged length = %d, want 2", len(merged))
	}
	if merged[0].Chunk.ChunkID != "only-lexical" {
		t.Errorf("first result = %q, want only-lexical ranked first on reciprocal-rank tie", merged[0].Chunk.ChunkID)
	}
}
