package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

// DenseRepo implements providers.DenseRetriever via pgvector cosine-distance
// search, grounded on the donor's internal/repository/chunk.go
// SimilaritySearch. The donor's is_privileged/deletion_status filters have
// no Gweta equivalent; they are replaced with jurisdiction = 'ZW' scoping.
// Results are not filtered by doc_type.
type DenseRepo struct {
	pool *pgxpool.Pool
}

// NewDenseRepo creates a DenseRepo.
func NewDenseRepo(pool *pgxpool.Pool) *DenseRepo {
	return &DenseRepo{pool: pool}
}

var _ providers.DenseRetriever = (*DenseRepo)(nil)

// Search implements providers.DenseRetriever.
func (r *DenseRepo) Search(ctx context.Context, queryVec []float32, topK int) ([]model.RetrievalResult, error) {
	vec := pgvector.NewVector(queryVec)

	rows, err := r.pool.Query(ctx, `
		SELECT chunk_id, parent_doc_id, text, doc_type, section_path,
		       start_char, end_char, num_tokens, language, source_url, entities,
		       1 - (embedding <=> $1) AS similarity
		FROM chunks
		WHERE jurisdiction = 'ZW'
		ORDER BY embedding <=> $1
		LIMIT $2
	`, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval.DenseRepo.Search: %w", err)
	}
	defer rows.Close()

	var results []model.RetrievalResult
	rank := 0
	for rows.Next() {
		var c model.Chunk
		var similarity float64
		if err := rows.Scan(
			&c.ChunkID, &c.ParentDocID, &c.Text, &c.DocType, &c.SectionPath,
			&c.StartChar, &c.EndChar, &c.NumTokens, &c.Language, &c.SourceURL,
			pq.Array(&c.Entities),
			&similarity,
		); err != nil {
			return nil, fmt.Errorf("retrieval.DenseRepo.Search: scan: %w", err)
		}
		results = append(results, model.RetrievalResult{
			Chunk:      c,
			DenseRank:  rank,
			DenseScore: similarity,
		})
		rank++
	}

	slog.Info("[DEBUG-RETRIEVER] dense search complete", "results", len(results), "top_k", topK)
	return results, nil
}
