package retrieval

import "github.com/connexus-ai/gweta-core/internal/model"

// topKEntry is one row of the adaptive top-k table (§4.5).
type topKEntry struct {
	retrieval int
	rerank    int
}

var adaptiveTopK = map[model.Complexity]topKEntry{
	model.ComplexitySimple:   {retrieval: 15, rerank: 5},
	model.ComplexityModerate: {retrieval: 25, rerank: 8},
	model.ComplexityComplex:  {retrieval: 40, rerank: 12},
	model.ComplexityExpert:   {retrieval: 50, rerank: 15},
}

// AdaptiveTopK returns (retrieval_top_k, rerank_top_k) for a complexity
// level. Unrecognized complexity falls back to the moderate row.
func AdaptiveTopK(c model.Complexity) (retrievalTopK, rerankTopK int) {
	entry, ok := adaptiveTopK[c]
	if !ok {
		entry = adaptiveTopK[model.ComplexityModerate]
	}
	return entry.retrieval, entry.rerank
}
