package retrieval

import (
	"sort"

	"github.com/connexus-ai/gweta-core/internal/model"
)

// Merge combines lexical and dense candidate lists per §4.3: duplicate
// chunk_ids keep whichever copy carries the higher native retriever score
// (lexical ts_rank_cd against dense cosine similarity, compared as-is), then
// the deduplicated set is interleaved by reciprocal rank (lexical rank used
// as the tie-break when reciprocal scores are equal), capped at
// 2*max(len(lexical), len(dense)).
func Merge(lexical, dense []model.RetrievalResult) []model.RetrievalResult {
	byID := make(map[string]model.RetrievalResult, len(lexical)+len(dense))

	for _, r := range dense {
		byID[r.Chunk.ChunkID] = r
	}
	for _, r := range lexical {
		existing, ok := byID[r.Chunk.ChunkID]
		if !ok {
			byID[r.Chunk.ChunkID] = r
			continue
		}
		// Same chunk found in both lists: keep the higher-scoring half of
		// each, merge rank bookkeeping so later stages see both signals.
		merged := existing
		merged.LexicalRank = r.LexicalRank
		merged.LexicalScore = r.LexicalScore
		if r.LexicalScore > existing.DenseScore {
			merged.Chunk = r.Chunk
		}
		byID[r.Chunk.ChunkID] = merged
	}

	results := make([]model.RetrievalResult, 0, len(byID))
	for _, r := range byID {
		results = append(results, r)
	}

	reciprocal := func(r model.RetrievalResult) float64 {
		var score float64
		if _, inLexical := findByID(lexical, r.Chunk.ChunkID); inLexical {
			score += 1.0 / float64(1+r.LexicalRank)
		}
		if _, inDense := findByID(dense, r.Chunk.ChunkID); inDense {
			score += 1.0 / float64(1+r.DenseRank)
		}
		return score
	}

	sort.SliceStable(results, func(i, j int) bool {
		si, sj := reciprocal(results[i]), reciprocal(results[j])
		if si != sj {
			return si > sj
		}
		// Tie-break on lexical rank: lower (better) rank wins. Chunks
		// absent from the lexical list sort after those present.
		li, lj := results[i].LexicalRank, results[j].LexicalRank
		liPresent := hasLexical(lexical, results[i].Chunk.ChunkID)
		ljPresent := hasLexical(lexical, results[j].Chunk.ChunkID)
		if liPresent != ljPresent {
			return liPresent
		}
		return li < lj
	})

	cap := 2 * max(len(lexical), len(dense))
	if cap > 0 && len(results) > cap {
		results = results[:cap]
	}
	return results
}

func findByID(list []model.RetrievalResult, chunkID string) (model.RetrievalResult, bool) {
	for _, r := range list {
		if r.Chunk.ChunkID == chunkID {
			return r, true
		}
	}
	return model.RetrievalResult{}, false
}

func hasLexical(lexical []model.RetrievalResult, chunkID string) bool {
	_, ok := findByID(lexical, chunkID)
	return ok
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
