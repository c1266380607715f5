package service

import (
	"strings"
	"unicode"

	"github.com/connexus-ai/gweta-core/internal/model"
)

// gapRetrievalBump is the retrieval_top_k increment gap_retrieve applies
// before re-invoking the retrievers (spec §4.12).
const gapRetrievalBump = 15

// stopWords excludes common English function words from gap-query keyword
// extraction, grounded on the donor's content_gap.go extractTopicHints.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "have": true, "been": true, "from": true, "this": true,
	"that": true, "they": true, "with": true, "what": true, "when": true,
	"where": true, "which": true, "will": true, "how": true, "does": true,
	"about": true, "into": true, "than": true, "them": true, "then": true,
	"there": true, "these": true, "would": true, "could": true, "should": true,
	"their": true, "other": true, "some": true, "such": true, "also": true,
	"just": true, "more": true, "most": true, "very": true, "much": true,
	"many": true, "each": true, "only": true, "like": true, "over": true,
}

// constitutionalHints and caseLawHints are the query-enrichment terms added
// when a quality gap names a missing constitutional basis or missing case
// law (spec §4.12's examples).
var constitutionalHints = []string{"constitution", "bill of rights", "fundamental rights"}
var caseLawHints = []string{"case law", "judgment", "court held"}

// GapQuery generates the re-retrieval query from a quality report's gap
// signals, grounded on the donor's content_gap.go extractTopicHints keyword
// extraction, adapted to synthesize a follow-up retrieval query rather than
// a logged ticket.
func GapQuery(originalQuery string, report *QualityReport) string {
	topics := extractTopicHints(originalQuery)
	hints := gapHints(report)

	parts := append([]string{originalQuery}, topics...)
	parts = append(parts, hints...)
	return strings.Join(dedupeStrings(parts), " ")
}

// gapHints names the enrichment terms for each gap class a quality report
// can signal, per spec §4.12's examples.
func gapHints(report *QualityReport) []string {
	var hints []string
	if len(report.IrrelevantChunkIDs) > 0 || report.RelevanceScore < 0.6 {
		hints = append(hints, caseLawHints...)
	}
	if report.AttributionScore < 0.6 {
		hints = append(hints, constitutionalHints...)
	}
	return hints
}

// GapRetrievalTopK returns the bumped retrieval_top_k for the gap-retrieve
// loop (spec §4.12: "invokes the two retrievers with retrieval_top_k += 15").
func GapRetrievalTopK(baseTopK int) int {
	return baseTopK + gapRetrievalBump
}

// DedupeAgainstBundle removes any candidate already present (by chunk_id) in
// the existing bundled context, per spec §4.12's "de-duplicates against
// bundled_context" requirement.
func DedupeAgainstBundle(candidates []model.Chunk, bundledContext []model.Chunk) []model.Chunk {
	seen := make(map[string]bool, len(bundledContext))
	for _, c := range bundledContext {
		seen[c.ChunkID] = true
	}
	out := make([]model.Chunk, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		out = append(out, c)
	}
	return out
}

// extractTopicHints extracts unique words longer than 3 characters that are
// not stop words, capped at 5 — the donor's content_gap.go algorithm.
func extractTopicHints(query string) []string {
	words := strings.Fields(query)
	seen := map[string]bool{}
	var topics []string

	for _, w := range words {
		cleaned := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		lower := strings.ToLower(cleaned)

		if len(lower) <= 3 {
			continue
		}
		if stopWords[lower] {
			continue
		}
		if seen[lower] {
			continue
		}

		seen[lower] = true
		topics = append(topics, lower)
		if len(topics) >= 5 {
			break
		}
	}
	return topics
}

func dedupeStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		key := strings.ToLower(strings.TrimSpace(it))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}
