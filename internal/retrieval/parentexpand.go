package retrieval

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

// ExpandParents fetches the ParentDocument for each selected chunk with
// bounded concurrency (§4.8/§5: default pool 8, per-fetch timeout 2s). A
// missing or slow parent is not fatal: the chunk is kept with Parent==nil,
// which callers must treat as "not citable as primary authority" per the
// spec's degrade-gracefully rule, rather than dropping the chunk outright.
func ExpandParents(ctx context.Context, store providers.ParentStore, chunks []model.RetrievalResult, concurrency int, perFetchTimeout time.Duration) []model.RetrievalResult {
	if concurrency <= 0 {
		concurrency = 8
	}
	if perFetchTimeout <= 0 {
		perFetchTimeout = 2 * time.Second
	}

	out := make([]model.RetrievalResult, len(chunks))
	copy(out, chunks)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range out {
		i := i
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gCtx, perFetchTimeout)
			defer cancel()

			parent, err := store.GetParent(fetchCtx, out[i].Chunk.ParentDocID)
			if err != nil {
				slog.Warn("[DEBUG-RETRIEVER] parent expand miss",
					"parent_doc_id", out[i].Chunk.ParentDocID, "error", err)
				return nil // non-fatal: chunk keeps Parent==nil
			}
			out[i].Parent = parent
			return nil
		})
	}

	// errgroup.Go never returns a non-nil error above, so Wait cannot fail;
	// the call is kept to honor the errgroup contract for future callers
	// that do want fatal propagation.
	_ = g.Wait()

	return out
}
