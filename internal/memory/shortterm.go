// Package memory implements the two-tier conversational memory of spec
// §4.14: a bounded per-session short-term window and a cross-session
// long-term user profile, combined by a coordinator that fetches both in
// parallel and merges them into a token-budgeted memory_context string.
//
// The short-term store is grounded on the donor's internal/service/cortex.go
// Ingest/Search shape, simplified from cortex's recency-weighted semantic
// search down to a plain bounded FIFO window. The long-term store is
// grounded on internal/service/session.go's RecordQuery/appendUnique/
// decodeStringSlice dedup-append idiom.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

const shortTermTTLSeconds = 24 * 3600

// ShortTermStore persists the bounded per-session message window in the
// shared cache backend, keyed by session_id.
type ShortTermStore struct {
	backend providers.Cache
	window  int
}

// NewShortTermStore creates a ShortTermStore with the given window size
// (messages retained per session, default 20 per §4.14).
func NewShortTermStore(backend providers.Cache, window int) *ShortTermStore {
	if window <= 0 {
		window = 20
	}
	return &ShortTermStore{backend: backend, window: window}
}

func shortTermKey(sessionID string) string {
	return "shortterm:" + sessionID
}

// Get returns the session's current message window, or an empty window if
// none exists yet or the backend is unreachable (a cold cache degrades to
// "no memory", not a failed request).
func (s *ShortTermStore) Get(ctx context.Context, sessionID string) *model.ShortTermMemory {
	raw, ok, err := s.backend.Get(ctx, shortTermKey(sessionID))
	if err != nil || !ok {
		if err != nil {
			slog.Warn("[MEMORY] short-term get failed", "session_id", sessionID, "error", err)
		}
		return &model.ShortTermMemory{SessionID: sessionID}
	}
	var mem model.ShortTermMemory
	if err := json.Unmarshal(raw, &mem); err != nil {
		slog.Warn("[MEMORY] short-term entry corrupt", "session_id", sessionID, "error", err)
		return &model.ShortTermMemory{SessionID: sessionID}
	}
	return &mem
}

// Append adds one turn to the session's window, trimming to the configured
// size (oldest dropped first) and refreshing the 24h TTL.
func (s *ShortTermStore) Append(ctx context.Context, sessionID, role, content string) error {
	mem := s.Get(ctx, sessionID)
	mem.Messages = append(mem.Messages, model.ShortTermMessage{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	if len(mem.Messages) > s.window {
		mem.Messages = mem.Messages[len(mem.Messages)-s.window:]
	}
	mem.UpdatedAt = time.Now()

	raw, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("memory.ShortTermStore.Append: marshal: %w", err)
	}
	if err := s.backend.Set(ctx, shortTermKey(sessionID), raw, shortTermTTLSeconds); err != nil {
		return fmt.Errorf("memory.ShortTermStore.Append: %w", err)
	}
	return nil
}
