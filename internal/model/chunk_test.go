package model

import "testing"

func TestComputeChunkID_Deterministic(t *testing.T) {
	a := ComputeChunkID("doc-1", "s.56", 100, 250, "the minister may prescribe")
	b := ComputeChunkID("doc-1", "s.56", 100, 250, "the minister may prescribe")
	if a != b {
		t.Fatalf("ComputeChunkID not deterministic: %q != %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("chunk_id length = %d, want 16", len(a))
	}
}

func TestComputeChunkID_DistinctInputsDiffer(t *testing.T) {
	base := ComputeChunkID("doc-1", "s.56", 100, 250, "text")
	cases := []string{
		ComputeChunkID("doc-2", "s.56", 100, 250, "text"),
		ComputeChunkID("doc-1", "s.57", 100, 250, "text"),
		ComputeChunkID("doc-1", "s.56", 101, 250, "text"),
		ComputeChunkID("doc-1", "s.56", 100, 251, "text"),
		ComputeChunkID("doc-1", "s.56", 100, 250, "other text"),
	}
	for i, c := range cases {
		if c == base {
			t.Errorf("case %d: expected a different chunk_id, got the same %q", i, c)
		}
	}
}
