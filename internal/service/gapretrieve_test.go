package service

import (
	"strings"
	"testing"

	"github.com/connexus-ai/gweta-core/internal/model"
)

func TestGapQuery_AddsCaseLawHintsOnLowRelevance(t *testing.T) {
	report := &QualityReport{RelevanceScore: 0.3}
	q := GapQuery("what is unfair dismissal", report)
	if !strings.Contains(q, "judgment") {
		t.Errorf("GapQuery = %q, want case-law hint terms for a low-relevance gap", q)
	}
}

func TestGapQuery_AddsConstitutionalHintsOnWeakAttribution(t *testing.T) {
	report := &QualityReport{AttributionScore: 0.4, RelevanceScore: 0.9}
	q := GapQuery("rights of arrested persons", report)
	if !strings.Contains(q, "constitution") {
		t.Errorf("GapQuery = %q, want constitutional hint terms for weak attribution", q)
	}
}

func TestGapRetrievalTopK_BumpsByFifteen(t *testing.T) {
	if got := GapRetrievalTopK(25); got != 40 {
		t.Fatalf("GapRetrievalTopK(25) = %d, want 40", got)
	}
}

func TestDedupeAgainstBundle_RemovesExistingChunkIDs(t *testing.T) {
	bundle := []model.Chunk{{ChunkID: "a"}, {ChunkID: "b"}}
	candidates := []model.Chunk{{ChunkID: "a"}, {ChunkID: "c"}}

	out := DedupeAgainstBundle(candidates, bundle)
	if len(out) != 1 || out[0].ChunkID != "c" {
		t.Fatalf("DedupeAgainstBundle = %+v, want only chunk c", out)
	}
}
