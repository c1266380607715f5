// Package service implements the query-understanding and answer-production
// stages of the graph runtime: intent classification, query rewriting,
// synthesis, quality gating, self-critique, and gap-query generation (spec
// §4.7–§4.12). It is grounded on the donor's internal/service package —
// generator.go's prompt-layering idiom, selfrag.go's iterative-reflection
// shape, content_gap.go's keyword-hint extraction, and silence.go's
// low-confidence refusal response — adapted from the donor's document-chat
// domain to Gweta's statute/case-law question answering.
package service

import "strings"

// rulesLayer is the non-negotiable grounding discipline every answer must
// follow, regardless of register — the donor's "Layer 1: Rules Engine"
// idiom (generator.go/promptloader.go), specialized to the citation
// discipline of spec §4.9.
const rulesLayer = `You are Gweta, a legal question-answering assistant for Zimbabwean statute and case law.
Rules:
- Only answer from the provided context chunks. Never speculate beyond them.
- Every factual claim must cite a chunk_id present in the context; never invent or cite an external source.
- If the context is insufficient to answer, say so explicitly rather than guessing.
- Return your response as JSON matching the requested schema exactly.`

// citizenLayer asks for plain prose aimed at a non-lawyer reader.
const citizenLayer = `Register: plain-language citizen answer.
Write for a reader with no legal training. Avoid jargon; where a legal term is unavoidable, explain it in one clause.
The body should read as plain prose, not a formal legal memo.`

// professionalLayer asks for IRAC-style structured legal analysis.
const professionalLayer = `Register: professional IRAC-style answer.
Structure the body as Issue, Rule, Application, Conclusion. Use precise statutory/case citations inline.
Assume the reader is a legal professional; technical terms do not need lay explanation.`

// BuildSystemPrompt assembles the layered system prompt for a synthesis
// call: rules layer always first, then the register layer selected by
// userType, matching the donor's always-present-rules-then-variable-layer
// structure (generator.go buildSystemPrompt/buildDynamicPrompt).
func BuildSystemPrompt(userType string) string {
	var sb strings.Builder
	sb.WriteString(rulesLayer)
	sb.WriteString("\n\n")
	if userType == "professional" {
		sb.WriteString(professionalLayer)
	} else {
		sb.WriteString(citizenLayer)
	}
	return sb.String()
}
