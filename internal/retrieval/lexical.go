package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

// LexicalRepo implements providers.LexicalRetriever via Postgres full-text
// search, grounded on the donor's internal/repository/bm25.go (ts_rank_cd
// over a GIN index), scoped to jurisdiction rather than the donor's
// per-user document ownership.
type LexicalRepo struct {
	pool *pgxpool.Pool
}

// NewLexicalRepo creates a LexicalRepo.
func NewLexicalRepo(pool *pgxpool.Pool) *LexicalRepo {
	return &LexicalRepo{pool: pool}
}

var _ providers.LexicalRetriever = (*LexicalRepo)(nil)

// Search implements providers.LexicalRetriever.
func (r *LexicalRepo) Search(ctx context.Context, query string, topK int) ([]model.RetrievalResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT chunk_id, parent_doc_id, text, doc_type, section_path,
		       start_char, end_char, num_tokens, language, source_url, entities,
		       ts_rank_cd(content_tsv, plainto_tsquery('english', $1)) AS rank
		FROM chunks
		WHERE jurisdiction = 'ZW'
		  AND content_tsv @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC
		LIMIT $2
	`, query, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval.LexicalRepo.Search: %w", err)
	}
	defer rows.Close()

	var results []model.RetrievalResult
	rank := 0
	for rows.Next() {
		var c model.Chunk
		var score float64
		if err := rows.Scan(
			&c.ChunkID, &c.ParentDocID, &c.Text, &c.DocType, &c.SectionPath,
			&c.StartChar, &c.EndChar, &c.NumTokens, &c.Language, &c.SourceURL,
			pq.Array(&c.Entities),
			&score,
		); err != nil {
			return nil, fmt.Errorf("retrieval.LexicalRepo.Search: scan: %w", err)
		}
		results = append(results, model.RetrievalResult{
			Chunk:        c,
			LexicalRank:  rank,
			LexicalScore: score,
		})
		rank++
	}

	slog.Info("[DEBUG-RETRIEVER] lexical search complete", "results", len(results), "top_k", topK)
	return results, nil
}
