package service

import (
	"testing"

	"github.com/connexus-ai/gweta-core/internal/model"
)

func TestDecide_IterationCapForcesFail(t *testing.T) {
	r := &QualityReport{QualityConfidence: 0.1, RelevanceScore: 0.1}
	got := decide(r, model.ComplexitySimple, 2)
	if got != DecisionFail {
		t.Fatalf("decide at iteration cap = %s, want fail", got)
	}
}

func TestDecide_SourceGapRoutesToRetrieveMore(t *testing.T) {
	r := &QualityReport{QualityConfidence: 0.9, RelevanceScore: 0.4}
	got := decide(r, model.ComplexitySimple, 0)
	if got != DecisionRetrieveMore {
		t.Fatalf("decide with low relevance = %s, want retrieve_more", got)
	}
}

func TestDecide_WeakConfidenceRoutesToRefine(t *testing.T) {
	r := &QualityReport{QualityConfidence: 0.6, RelevanceScore: 0.9}
	got := decide(r, model.ComplexitySimple, 0)
	if got != DecisionRefineSynthesis {
		t.Fatalf("decide with weak confidence = %s, want refine_synthesis", got)
	}
}

func TestDecide_HardComplexityBelowThresholdRefines(t *testing.T) {
	r := &QualityReport{QualityConfidence: 0.75, RelevanceScore: 0.9}
	got := decide(r, model.ComplexityExpert, 0)
	if got != DecisionRefineSynthesis {
		t.Fatalf("decide(expert, 0.75) = %s, want refine_synthesis", got)
	}
}

func TestDecide_HighConfidencePasses(t *testing.T) {
	r := &QualityReport{QualityConfidence: 0.95, RelevanceScore: 0.95}
	got := decide(r, model.ComplexityExpert, 0)
	if got != DecisionPass {
		t.Fatalf("decide(expert, 0.95) = %s, want pass", got)
	}
}

func TestDecide_SimpleComplexityIgnoresHardThreshold(t *testing.T) {
	// 0.45 is below the complex/expert threshold of 0.7 and outside the
	// refine band [0.5, 0.8); simple complexity has no additional
	// hard-complexity rule, so this should pass (at expert it would refine).
	r := &QualityReport{QualityConfidence: 0.45, RelevanceScore: 0.95}
	got := decide(r, model.ComplexitySimple, 0)
	if got != DecisionPass {
		t.Fatalf("decide(simple, 0.45) = %s, want pass", got)
	}
}
