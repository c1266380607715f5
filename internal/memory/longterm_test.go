package memory

import (
	"context"
	"testing"

	"github.com/connexus-ai/gweta-core/internal/model"
)

type fakeProfileStore struct {
	profiles map[string]*model.UserProfile
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: map[string]*model.UserProfile{}}
}

func (f *fakeProfileStore) Get(_ context.Context, userID string) (*model.UserProfile, error) {
	return f.profiles[userID], nil
}

func (f *fakeProfileStore) Update(_ context.Context, profile *model.UserProfile) error {
	f.profiles[profile.UserID] = profile
	return nil
}

func TestLongTermStore_FirstTimeUserGetsFreshProfile(t *testing.T) {
	store := NewLongTermStore(newFakeProfileStore())
	profile := store.Get(context.Background(), "u1")
	if profile.QueryCount != 0 {
		t.Fatalf("fresh profile QueryCount = %d, want 0", profile.QueryCount)
	}
	if profile.ExpertiseLevel != model.UserTypeCitizen {
		t.Fatalf("fresh profile ExpertiseLevel = %s, want citizen", profile.ExpertiseLevel)
	}
}

func TestLongTermStore_RecordQueryIsCommutativeForCounters(t *testing.T) {
	ctx := context.Background()

	// Apply the same two increments in opposite orders against two stores
	// and confirm the resulting counters agree (spec §8: "Memory update is
	// commutative for area_frequency and query_count increments").
	storeA := NewLongTermStore(newFakeProfileStore())
	if err := storeA.RecordQuery(ctx, "u1", []string{"labour"}, model.UserTypeCitizen); err != nil {
		t.Fatalf("RecordQuery: %v", err)
	}
	if err := storeA.RecordQuery(ctx, "u1", []string{"constitutional"}, model.UserTypeCitizen); err != nil {
		t.Fatalf("RecordQuery: %v", err)
	}

	storeB := NewLongTermStore(newFakeProfileStore())
	if err := storeB.RecordQuery(ctx, "u1", []string{"constitutional"}, model.UserTypeCitizen); err != nil {
		t.Fatalf("RecordQuery: %v", err)
	}
	if err := storeB.RecordQuery(ctx, "u1", []string{"labour"}, model.UserTypeCitizen); err != nil {
		t.Fatalf("RecordQuery: %v", err)
	}

	pa := storeA.Get(ctx, "u1")
	pb := storeB.Get(ctx, "u1")

	if pa.QueryCount != pb.QueryCount {
		t.Errorf("QueryCount diverged by order: %d vs %d", pa.QueryCount, pb.QueryCount)
	}
	if pa.AreaFrequency["labour"] != pb.AreaFrequency["labour"] {
		t.Errorf("AreaFrequency[labour] diverged by order: %d vs %d", pa.AreaFrequency["labour"], pb.AreaFrequency["labour"])
	}
	if pa.AreaFrequency["constitutional"] != pb.AreaFrequency["constitutional"] {
		t.Errorf("AreaFrequency[constitutional] diverged by order: %d vs %d", pa.AreaFrequency["constitutional"], pb.AreaFrequency["constitutional"])
	}
}

func TestLongTermStore_ExpertiseLevelHasHysteresis(t *testing.T) {
	ctx := context.Background()
	store := NewLongTermStore(newFakeProfileStore())

	// Citizen user starts as citizen; four "professional" observations in a
	// row should not yet flip the profile (hysteresis = 5 queries).
	for i := 0; i < 4; i++ {
		if err := store.RecordQuery(ctx, "u1", nil, model.UserTypeProfessional); err != nil {
			t.Fatalf("RecordQuery: %v", err)
		}
	}
	if got := store.Get(ctx, "u1").ExpertiseLevel; got != model.UserTypeCitizen {
		t.Fatalf("ExpertiseLevel flipped early after 4 observations: %s", got)
	}

	// The 5th consecutive professional observation should flip it.
	if err := store.RecordQuery(ctx, "u1", nil, model.UserTypeProfessional); err != nil {
		t.Fatalf("RecordQuery: %v", err)
	}
	if got := store.Get(ctx, "u1").ExpertiseLevel; got != model.UserTypeProfessional {
		t.Fatalf("ExpertiseLevel = %s after 5 consistent observations, want professional", got)
	}
}

func TestLongTermStore_SingleAtypicalQueryDoesNotFlip(t *testing.T) {
	ctx := context.Background()
	store := NewLongTermStore(newFakeProfileStore())

	if err := store.RecordQuery(ctx, "u1", nil, model.UserTypeProfessional); err != nil {
		t.Fatalf("RecordQuery: %v", err)
	}
	// Back to citizen-looking query resets the hysteresis counter.
	if err := store.RecordQuery(ctx, "u1", nil, model.UserTypeCitizen); err != nil {
		t.Fatalf("RecordQuery: %v", err)
	}
	if got := store.Get(ctx, "u1").ExpertiseLevel; got != model.UserTypeCitizen {
		t.Fatalf("ExpertiseLevel = %s, want citizen (single atypical query must not flip it)", got)
	}
}
