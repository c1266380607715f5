package retrieval

import (
	"testing"

	"github.com/connexus-ai/gweta-core/internal/model"
)

func TestAdaptiveTopK_Table(t *testing.T) {
	cases := []struct {
		complexity model.Complexity
		retrieval  int
		rerank     int
	}{
		{model.ComplexitySimple, 15, 5},
		{model.ComplexityModerate, 25, 8},
		{model.ComplexityComplex, 40, 12},
		{model.ComplexityExpert, 50, 15},
	}
	for _, c := range cases {
		gotR, gotK := AdaptiveTopK(c.complexity)
		if gotR != c.retrieval || gotK != c.rerank {
			t.Errorf("AdaptiveTopK(%s) = (%d, %d), want (%d, %d)", c.complexity, gotR, gotK, c.retrieval, c.rerank)
		}
	}
}

func TestAdaptiveTopK_UnknownFallsBackToModerate(t *testing.T) {
	gotR, gotK := AdaptiveTopK(model.Complexity("bogus"))
	wantR, wantK := AdaptiveTopK(model.ComplexityModerate)
	if gotR != wantR || gotK != wantK {
		t.Errorf("AdaptiveTopK(unknown) = (%d, %d), want moderate row (%d, %d)", gotR, gotK, wantR, wantK)
	}
}
