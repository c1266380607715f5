package memory

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/gweta-core/internal/model"
)

// Coordinator fetches short-term and long-term memory in parallel and merges
// them into a single memory_context string within a fixed token budget,
// split by tokenSplit between the two tiers (default 0.70 short-term / 0.30
// long-term per config.MemoryTokenSplit — recent conversational turns matter
// more to the synthesizer than profile statistics).
type Coordinator struct {
	shortTerm  *ShortTermStore
	longTerm   *LongTermStore
	tokenSplit float64
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(shortTerm *ShortTermStore, longTerm *LongTermStore, tokenSplit float64) *Coordinator {
	if tokenSplit <= 0 || tokenSplit >= 1 {
		tokenSplit = 0.70
	}
	return &Coordinator{shortTerm: shortTerm, longTerm: longTerm, tokenSplit: tokenSplit}
}

// FetchContext builds the memory_context for one request. A failure in
// either fetch degrades to an empty contribution from that tier rather than
// failing the whole lookup, matching the "cache/memory miss is never fatal"
// rule applied throughout this package.
func (c *Coordinator) FetchContext(ctx context.Context, sessionID, userID string, tokenBudget int) string {
	var shortTerm *model.ShortTermMemory
	var longTerm *model.UserProfile

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		shortTerm = c.shortTerm.Get(gCtx, sessionID)
		return nil
	})
	g.Go(func() error {
		longTerm = c.longTerm.Get(gCtx, userID)
		return nil
	})
	_ = g.Wait() // both goroutines are infallible by construction; see Get docs

	shortBudget := int(float64(tokenBudget) * c.tokenSplit)
	longBudget := tokenBudget - shortBudget

	var b strings.Builder
	if s := renderShortTerm(shortTerm, shortBudget); s != "" {
		b.WriteString(s)
	}
	if l := renderLongTerm(longTerm, longBudget); l != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(l)
	}
	return b.String()
}

// RecordTurn appends one message, under the given role, to short-term
// memory. The graph runtime's memory_update step calls it once for the
// user's query and once for the synthesized assistant reply.
func (c *Coordinator) RecordTurn(ctx context.Context, sessionID, role, content string) error {
	if err := c.shortTerm.Append(ctx, sessionID, role, content); err != nil {
		return fmt.Errorf("memory.Coordinator.RecordTurn: %w", err)
	}
	return nil
}

func renderShortTerm(mem *model.ShortTermMemory, tokenBudget int) string {
	if mem == nil || len(mem.Messages) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	used := estimateTokens(b.String())
	// Walk from most recent backward so truncation drops the oldest turns
	// first, then restore chronological order for the final string.
	var kept []string
	for i := len(mem.Messages) - 1; i >= 0; i-- {
		line := fmt.Sprintf("%s: %s", mem.Messages[i].Role, mem.Messages[i].Content)
		cost := estimateTokens(line)
		if used+cost > tokenBudget && len(kept) > 0 {
			break
		}
		kept = append(kept, line)
		used += cost
	}
	for i := len(kept) - 1; i >= 0; i-- {
		b.WriteString(kept[i])
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderLongTerm(profile *model.UserProfile, tokenBudget int) string {
	if profile == nil || profile.QueryCount == 0 {
		return ""
	}
	summary := fmt.Sprintf("User profile: %d prior queries, expertise level %q.", profile.QueryCount, profile.ExpertiseLevel)
	if len(profile.AreaFrequency) > 0 {
		top, count := "", int64(0)
		for area, n := range profile.AreaFrequency {
			if n > count {
				top, count = area, n
			}
		}
		if top != "" {
			summary += fmt.Sprintf(" Most frequent area: %s.", top)
		}
	}
	if estimateTokens(summary) > tokenBudget {
		return ""
	}
	return summary
}

// estimateTokens is the 4-characters-per-token approximation of
// internal/service/usage.go EstimateTokens, duplicated here in miniature to
// keep this package free of a dependency on internal/service.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(float64(len(text))/4.0 + 0.5)
}
