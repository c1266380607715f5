package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

// SelfCritique is the structured output of self_critic (spec §4.11).
type SelfCritique struct {
	RefinementInstructions []string `json:"refinement_instructions"`
	PriorityFixes          []string `json:"priority_fixes"`
	SuggestedAdditions     []string `json:"suggested_additions"`
}

// genericCritique is the fallback used when the critic's response fails to
// parse — spec §4.11: "on parse failure it falls back to a generic
// instruction set".
func genericCritique() SelfCritique {
	return SelfCritique{
		RefinementInstructions: []string{"strengthen citations", "address unsupported_statements"},
	}
}

// SelfCritic implements spec §4.11's self_critic node, grounded on the
// donor's selfrag.go iterative-reflection loop.
type SelfCritic struct {
	llm providers.LLM
}

// NewSelfCritic creates a SelfCritic.
func NewSelfCritic(llm providers.LLM) *SelfCritic {
	return &SelfCritic{llm: llm}
}

const selfCriticSystemPrompt = `You review a draft legal answer against its quality report and propose concrete fixes.
Respond as JSON:
{"refinement_instructions": ["..."], "priority_fixes": ["..."], "suggested_additions": ["..."]}`

// Critique produces refinement guidance from the draft synthesis and its
// quality report.
func (c *SelfCritic) Critique(ctx context.Context, draft *model.Synthesis, report *QualityReport) (SelfCritique, error) {
	userPrompt := buildCritiquePrompt(draft, report)
	raw, err := c.llm.Complete(ctx, selfCriticSystemPrompt, userPrompt)
	if err != nil {
		return SelfCritique{}, fmt.Errorf("service.SelfCritic.Critique: %w", err)
	}

	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var critique SelfCritique
	if err := json.Unmarshal([]byte(cleaned), &critique); err != nil {
		return genericCritique(), nil
	}
	if len(critique.RefinementInstructions) == 0 {
		critique.RefinementInstructions = genericCritique().RefinementInstructions
	}
	return critique, nil
}

func buildCritiquePrompt(draft *model.Synthesis, report *QualityReport) string {
	var sb strings.Builder
	sb.WriteString("=== DRAFT BODY ===\n")
	sb.WriteString(draft.Body)
	sb.WriteString(fmt.Sprintf("\n\n=== QUALITY REPORT ===\nattribution_score: %.2f\nunsupported_statements: %v\ncoherence_score: %.2f\nincoherent_pairs: %v\nrelevance_score: %.2f\nirrelevant_chunk_ids: %v\n",
		report.AttributionScore, report.UnsupportedStmts,
		report.CoherenceScore, report.IncoherentPairs,
		report.RelevanceScore, report.IrrelevantChunkIDs))
	return sb.String()
}

// RefinedInstructions flattens a SelfCritique into the instruction list the
// refined synthesis prompt consumes, priority fixes first.
func RefinedInstructions(c SelfCritique) []string {
	instructions := make([]string, 0, len(c.PriorityFixes)+len(c.RefinementInstructions)+len(c.SuggestedAdditions))
	instructions = append(instructions, c.PriorityFixes...)
	instructions = append(instructions, c.RefinementInstructions...)
	instructions = append(instructions, c.SuggestedAdditions...)
	return instructions
}
