package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

// Synthesizer produces grounded, cited answers from bundled context,
// grounded on the donor's generator.go Generate/buildUserPrompt/
// parseGenerationResponse shape, adapted for Gweta's tldr/key_points/body
// schema and its hard grounding-to-bundled-context invariant (spec §4.9).
type Synthesizer struct {
	llm providers.LLM
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(llm providers.LLM) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// SynthesizeOpts carries the inputs a synthesis call needs beyond the query
// and bundled context.
type SynthesizeOpts struct {
	Intent        model.Intent
	Complexity    model.Complexity
	UserType      model.UserType
	MemoryContext string
	// Instructions carries self-critic refinement guidance for a refined
	// synthesis pass; empty for the initial pass.
	Instructions []string
}

// synthesisJSON is the wire shape the LLM is asked to return.
type synthesisJSON struct {
	TLDR      string   `json:"tldr"`
	KeyPoints []string `json:"key_points"`
	Body      string   `json:"body"`
	Citations []string `json:"citations"`
}

// Synthesize produces a Synthesis grounded exclusively in bundledContext.
// Any citation the model returns that doesn't name a chunk_id present in
// bundledContext is dropped before the result is returned — the grounding
// invariant is enforced here, not trusted to the model's own discipline.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, bundledContext []model.Chunk, opts SynthesizeOpts) (*model.Synthesis, error) {
	if len(bundledContext) == 0 {
		return noSourcesSynthesis(), nil
	}

	systemPrompt := BuildSystemPrompt(string(opts.UserType))
	userPrompt := buildSynthesisPrompt(query, bundledContext, opts)

	raw, err := s.llm.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("service.Synthesize: %w", err)
	}

	synth, err := parseSynthesisResponse(raw, bundledContext)
	if err != nil {
		return nil, fmt.Errorf("service.Synthesize: parse: %w", err)
	}
	return synth, nil
}

// SynthesizeStreaming behaves like Synthesize but, when the wired LLM
// supports streaming, forwards each generated chunk to onToken as it
// arrives rather than waiting for the complete response. The final
// Synthesis is still parsed from the fully accumulated text, exactly as
// Synthesize would, so the grounding/citation-filtering invariant holds
// identically for both paths. onToken may be nil.
func (s *Synthesizer) SynthesizeStreaming(ctx context.Context, query string, bundledContext []model.Chunk, opts SynthesizeOpts, onToken func(string)) (*model.Synthesis, error) {
	if len(bundledContext) == 0 {
		return noSourcesSynthesis(), nil
	}

	systemPrompt := BuildSystemPrompt(string(opts.UserType))
	userPrompt := buildSynthesisPrompt(query, bundledContext, opts)

	textCh, errCh := s.llm.Stream(ctx, systemPrompt, userPrompt)

	var raw strings.Builder
	for chunk := range textCh {
		raw.WriteString(chunk)
		if onToken != nil {
			onToken(chunk)
		}
	}
	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("service.SynthesizeStreaming: %w", err)
	}

	synth, err := parseSynthesisResponse(raw.String(), bundledContext)
	if err != nil {
		return nil, fmt.Errorf("service.SynthesizeStreaming: parse: %w", err)
	}
	return synth, nil
}

// noSourcesSynthesis is returned when retrieval yields nothing — spec §8's
// boundary behavior "retriever returns 0 candidates ... synthesis runs with
// empty context and produces a low-confidence no-sources answer".
func noSourcesSynthesis() *model.Synthesis {
	return &model.Synthesis{
		TLDR:      "I could not find a relevant source for this question.",
		KeyPoints: []string{"No matching statute or case law was found in the indexed corpus."},
		Body:      "I don't have grounded sources to answer this question. Try rephrasing it or narrowing it to a specific act, section, or case.",
		Citations: nil,
	}
}

func buildSynthesisPrompt(query string, chunks []model.Chunk, opts SynthesizeOpts) string {
	var sb strings.Builder

	sb.WriteString("=== CONTEXT CHUNKS ===\n")
	for _, c := range chunks {
		sb.WriteString(fmt.Sprintf("[chunk_id=%s] (doc_type: %s, section: %s)\n%s\n\n", c.ChunkID, c.DocType, c.SectionPath, c.Text))
	}

	if opts.MemoryContext != "" {
		sb.WriteString("=== CONVERSATION CONTEXT (for understanding only, do not cite) ===\n")
		sb.WriteString(opts.MemoryContext)
		sb.WriteString("\n\n")
	}

	sb.WriteString("=== QUERY ===\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	if len(opts.Instructions) > 0 {
		sb.WriteString("=== REFINEMENT INSTRUCTIONS ===\n")
		for _, instr := range opts.Instructions {
			sb.WriteString("- ")
			sb.WriteString(instr)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	budget := TokenBudget(string(opts.Complexity))
	sb.WriteString(fmt.Sprintf("Target length: approximately %d tokens.\n", budget))
	sb.WriteString(`Respond as JSON: {"tldr": "<=220 chars, one sentence", "key_points": ["3 to 7 items"], "body": "...", "citations": ["chunk_id", ...]}`)

	return sb.String()
}

func parseSynthesisResponse(raw string, bundledContext []model.Chunk) (*model.Synthesis, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		if len(lines) >= 3 {
			cleaned = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	cleaned = strings.TrimSpace(cleaned)

	valid := make(map[string]bool, len(bundledContext))
	for _, c := range bundledContext {
		valid[c.ChunkID] = true
	}

	var parsed synthesisJSON
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		// Unstructured fallback: treat the raw text as the body with no
		// citations, rather than failing the request outright.
		return &model.Synthesis{
			TLDR:      truncateStr(raw, 220),
			KeyPoints: []string{},
			Body:      raw,
			Citations: nil,
		}, nil
	}

	citations := make([]string, 0, len(parsed.Citations))
	for _, id := range parsed.Citations {
		if valid[id] {
			citations = append(citations, id)
		}
	}

	tldr := parsed.TLDR
	if len(tldr) > 220 {
		tldr = tldr[:220]
	}

	return &model.Synthesis{
		TLDR:      tldr,
		KeyPoints: parsed.KeyPoints,
		Body:      parsed.Body,
		Citations: citations,
	}, nil
}

func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
