package service

import (
	"strings"
	"testing"

	"github.com/connexus-ai/gweta-core/internal/model"
)

func TestRewriteQuery_IdempotentWithNoContext(t *testing.T) {
	q := "What is unfair dismissal?"
	if got := RewriteQuery(q, nil); got != q {
		t.Fatalf("RewriteQuery(q, nil) = %q, want unchanged %q", got, q)
	}
	empty := &model.ShortTermMemory{SessionID: "s1"}
	if got := RewriteQuery(q, empty); got != q {
		t.Fatalf("RewriteQuery(q, empty window) = %q, want unchanged %q", got, q)
	}
}

func TestRewriteQuery_ResolvesPronounFromLastTurn(t *testing.T) {
	mem := &model.ShortTermMemory{
		SessionID: "s1",
		Messages: []model.ShortTermMessage{
			{Role: "user", Content: "What is unfair dismissal?"},
			{Role: "assistant", Content: "Unfair dismissal occurs when..."},
		},
	}
	got := RewriteQuery("Is it common?", mem)
	if got == "Is it common?" {
		t.Fatalf("RewriteQuery did not resolve the pronoun against memory")
	}
	if !strings.Contains(strings.ToLower(got), "unfair dismissal") {
		t.Errorf("rewritten query = %q, want it to reference %q", got, "unfair dismissal")
	}
}

func TestRewriteQuery_ExpandsJargon(t *testing.T) {
	got := RewriteQuery("what does the si say about this", &model.ShortTermMemory{
		SessionID: "s1",
		Messages:  []model.ShortTermMessage{{Role: "user", Content: "minimum wage"}},
	})
	if !strings.Contains(strings.ToLower(got), "statutory instrument") {
		t.Errorf("rewritten query = %q, want jargon expansion of si", got)
	}
}
