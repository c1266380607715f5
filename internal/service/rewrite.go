package service

import (
	"regexp"
	"strings"

	"github.com/connexus-ai/gweta-core/internal/model"
)

// pronounPattern matches the ellipsis/pronoun forms the rewriter resolves
// against recent turns (spec §4.8).
var pronounPattern = regexp.MustCompile(`(?i)\b(it|this|that|these|those|they|them)\b`)

// jargonExpansions maps a shorthand legal term to its expanded form, applied
// regardless of memory context — this is vocabulary expansion, not entity
// invention, so it is safe under the "must not invent entities" invariant.
var jargonExpansions = map[string]string{
	"si":   "statutory instrument",
	"cob":  "close of business",
	"ag":   "attorney general",
	"ccma": "labour court",
}

// RewriteQuery resolves pronouns/ellipsis against the last 3-5 short-term
// turns and expands jargon shorthand. It is idempotent on an empty memory
// window: rewrite(q, nil) == q, per spec §4.8 and §8's round-trip property.
// It never introduces an entity absent from the query or memory context —
// the only substitution it performs is replacing a matched pronoun with the
// single most recent noun-bearing subject line from memory, never a
// fabricated one.
func RewriteQuery(rawQuery string, shortTerm *model.ShortTermMemory) string {
	// No context at all: return the query completely unchanged, per the
	// rewrite(q, ∅) == q invariant (spec §8) — jargon expansion is a
	// context-dependent enrichment, not a standalone normalization step.
	if shortTerm == nil || len(shortTerm.Messages) == 0 {
		return rawQuery
	}
	if !pronounPattern.MatchString(rawQuery) {
		return expandJargon(rawQuery)
	}

	subject := lastSubject(shortTerm, 5)
	if subject == "" {
		return expandJargon(rawQuery)
	}

	rewritten := pronounPattern.ReplaceAllStringFunc(rawQuery, func(match string) string {
		return subject
	})
	return expandJargon(rewritten)
}

// lastSubject scans the last windowSize turns, newest first, for a subject
// to substitute for a pronoun — a plain heuristic: the most recent user
// message with its leading question words and trailing punctuation
// stripped. No noun-phrase extraction is attempted.
func lastSubject(mem *model.ShortTermMemory, windowSize int) string {
	start := len(mem.Messages) - windowSize
	if start < 0 {
		start = 0
	}
	for i := len(mem.Messages) - 1; i >= start; i-- {
		msg := mem.Messages[i]
		if msg.Role != "user" {
			continue
		}
		subject := stripQuestionWords(msg.Content)
		if subject != "" {
			return subject
		}
	}
	return ""
}

var leadingQuestionWords = regexp.MustCompile(`(?i)^\s*(what\s+is|what\s+are|who\s+is|define|explain)\s+`)

func stripQuestionWords(content string) string {
	s := leadingQuestionWords.ReplaceAllString(content, "")
	s = strings.TrimRight(s, "?. ")
	s = strings.TrimSpace(s)
	return s
}

func expandJargon(query string) string {
	words := strings.Fields(query)
	changed := false
	for i, w := range words {
		key := strings.ToLower(strings.Trim(w, ".,;:?!"))
		if expansion, ok := jargonExpansions[key]; ok {
			words[i] = expansion
			changed = true
		}
	}
	if !changed {
		return query
	}
	return strings.Join(words, " ")
}
