package retrieval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

// ParentRepo implements providers.ParentStore over the parent_documents
// table, grounded on DenseRepo/LexicalRepo's pgxpool query style above.
type ParentRepo struct {
	pool *pgxpool.Pool
}

// NewParentRepo creates a ParentRepo.
func NewParentRepo(pool *pgxpool.Pool) *ParentRepo {
	return &ParentRepo{pool: pool}
}

var _ providers.ParentStore = (*ParentRepo)(nil)

// GetParent implements providers.ParentStore.
func (r *ParentRepo) GetParent(ctx context.Context, parentDocID string) (*model.ParentDocument, error) {
	var doc model.ParentDocument
	var contentTreeRaw []byte

	err := r.pool.QueryRow(ctx, `
		SELECT parent_doc_id, doc_type, title, canonical_citation, language,
		       jurisdiction, version_effective_date, source_url, content_tree, markdown
		FROM parent_documents
		WHERE parent_doc_id = $1
	`, parentDocID).Scan(
		&doc.ParentDocID, &doc.DocType, &doc.Title, &doc.CanonicalCitation, &doc.Language,
		&doc.Jurisdiction, &doc.VersionEffectiveDate, &doc.SourceURL, &contentTreeRaw, &doc.Markdown,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("retrieval.ParentRepo.GetParent: %w", model.ErrBlobMiss)
		}
		return nil, fmt.Errorf("retrieval.ParentRepo.GetParent: %w", err)
	}

	if len(contentTreeRaw) > 0 {
		if err := json.Unmarshal(contentTreeRaw, &doc.ContentTree); err != nil {
			return nil, fmt.Errorf("retrieval.ParentRepo.GetParent: unmarshal content_tree: %w", err)
		}
	}

	return &doc, nil
}
