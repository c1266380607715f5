package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/connexus-ai/gweta-core/internal/model"
)

// memBackend is a minimal in-process providers.Cache for tests, avoiding any
// real network dependency.
type memBackend struct {
	mu   sync.Mutex
	kv   map[string][]byte
	sets map[string]map[string]bool
}

func newMemBackend() *memBackend {
	return &memBackend{kv: map[string][]byte{}, sets: map[string]map[string]bool{}}
}

func (m *memBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	return v, ok, nil
}

func (m *memBackend) Set(_ context.Context, key string, value []byte, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	return nil
}

func (m *memBackend) Expire(_ context.Context, _ string, _ int) error { return nil }

func (m *memBackend) SAdd(_ context.Context, set string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[set] == nil {
		m.sets[set] = map[string]bool{}
	}
	for _, mem := range members {
		m.sets[set][mem] = true
	}
	return nil
}

func (m *memBackend) SMembers(_ context.Context, set string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for mem := range m.sets[set] {
		out = append(out, mem)
	}
	return out, nil
}

func TestQueryCache_ExactRoundTrip(t *testing.T) {
	c := New(newMemBackend())
	ctx := context.Background()

	q := NormalizeQuery("  What Is Section 56  ")
	if q != "what is section 56" {
		t.Fatalf("NormalizeQuery: got %q", q)
	}

	if _, ok := c.GetExact(ctx, q, model.UserTypeCitizen); ok {
		t.Fatalf("expected miss before Set")
	}

	answer := &model.Answer{Kind: model.AnswerGrounded, TraceID: "t1"}
	c.SetExact(ctx, q, model.UserTypeCitizen, model.ComplexitySimple, answer)

	got, ok := c.GetExact(ctx, q, model.UserTypeCitizen)
	if !ok {
		t.Fatalf("expected hit after Set")
	}
	if got.TraceID != "t1" {
		t.Errorf("TraceID = %q, want t1", got.TraceID)
	}

	if _, ok := c.GetExact(ctx, q, model.UserTypeProfessional); ok {
		t.Fatalf("exact cache must not cross user_type")
	}
}

func TestQueryCache_Stats(t *testing.T) {
	c := New(newMemBackend())
	ctx := context.Background()

	c.GetExact(ctx, "missing", model.UserTypeCitizen)
	snap := c.Stats().Snapshot()
	if snap.Misses != 1 {
		t.Fatalf("Misses = %d, want 1", snap.Misses)
	}

	c.SetExact(ctx, "q", model.UserTypeCitizen, model.ComplexitySimple, &model.Answer{Kind: model.AnswerGrounded})
	c.GetExact(ctx, "q", model.UserTypeCitizen)
	snap = c.Stats().Snapshot()
	if snap.ExactHits != 1 {
		t.Fatalf("ExactHits = %d, want 1", snap.ExactHits)
	}
	if rate := snap.HitRate(); rate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", rate)
	}
}

func TestQueryCache_SemanticMatch(t *testing.T) {
	c := New(newMemBackend())
	ctx := context.Background()

	q := NormalizeQuery("what is the minimum wage")
	vec := []float32{1, 0, 0}
	c.SetExact(ctx, q, model.UserTypeCitizen, model.ComplexitySimple, &model.Answer{Kind: model.AnswerGrounded, TraceID: "wage"})
	c.SetSemantic(ctx, model.UserTypeCitizen, q, vec)

	near := []float32{0.99, 0.01, 0}
	got, ok := c.GetSemantic(ctx, model.UserTypeCitizen, near)
	if !ok {
		t.Fatalf("expected semantic hit for near-identical vector")
	}
	if got.TraceID != "wage" {
		t.Errorf("TraceID = %q, want wage", got.TraceID)
	}

	far := []float32{0, 1, 0}
	if _, ok := c.GetSemantic(ctx, model.UserTypeCitizen, far); ok {
		t.Fatalf("expected semantic miss for orthogonal vector")
	}
}
