package memory

import (
	"context"
	"sync"
	"testing"
)

// memCacheBackend is a minimal in-process providers.Cache for tests, mirroring
// internal/cache's own test fake so both packages test against real
// interface semantics rather than a hand-wired mock.
type memCacheBackend struct {
	mu  sync.Mutex
	kv  map[string][]byte
}

func newMemCacheBackend() *memCacheBackend {
	return &memCacheBackend{kv: map[string][]byte{}}
}

func (m *memCacheBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	return v, ok, nil
}

func (m *memCacheBackend) Set(_ context.Context, key string, value []byte, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	return nil
}

func (m *memCacheBackend) Expire(_ context.Context, _ string, _ int) error { return nil }
func (m *memCacheBackend) SAdd(_ context.Context, _ string, _ ...string) error { return nil }
func (m *memCacheBackend) SMembers(_ context.Context, _ string) ([]string, error) { return nil, nil }

func TestShortTermStore_WindowEviction(t *testing.T) {
	store := NewShortTermStore(newMemCacheBackend(), 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, "sess-1", "user", "turn"); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	mem := store.Get(ctx, "sess-1")
	if len(mem.Messages) != 3 {
		t.Fatalf("window length = %d, want 3 after 5 appends with window 3", len(mem.Messages))
	}
}

func TestShortTermStore_ColdSessionReturnsEmptyWindow(t *testing.T) {
	store := NewShortTermStore(newMemCacheBackend(), 20)
	mem := store.Get(context.Background(), "never-seen")
	if len(mem.Messages) != 0 {
		t.Fatalf("expected empty window for unseen session, got %d messages", len(mem.Messages))
	}
}

func TestShortTermStore_PreservesOrder(t *testing.T) {
	store := NewShortTermStore(newMemCacheBackend(), 10)
	ctx := context.Background()

	contents := []string{"first", "second", "third"}
	for _, c := range contents {
		if err := store.Append(ctx, "sess-2", "user", c); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	mem := store.Get(ctx, "sess-2")
	for i, c := range contents {
		if mem.Messages[i].Content != c {
			t.Errorf("Messages[%d].Content = %q, want %q", i, mem.Messages[i].Content, c)
		}
	}
}
