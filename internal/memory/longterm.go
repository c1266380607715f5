package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

// hysteresisQueries is how many queries a user must sustain a different
// inferred expertise level for before the profile's ExpertiseLevel actually
// flips, so a single atypical question doesn't bounce a citizen's profile
// to "professional" and back.
const hysteresisQueries = 5

// LongTermStore persists cross-session UserProfile records via
// providers.ProfileStore.
type LongTermStore struct {
	backend providers.ProfileStore
}

// NewLongTermStore creates a LongTermStore.
func NewLongTermStore(backend providers.ProfileStore) *LongTermStore {
	return &LongTermStore{backend: backend}
}

// Get fetches a user's profile, returning a fresh zero-value profile for a
// first-time user or on a backend error (degrade to "no history" rather than
// failing the request).
func (s *LongTermStore) Get(ctx context.Context, userID string) *model.UserProfile {
	profile, err := s.backend.Get(ctx, userID)
	if err != nil || profile == nil {
		if err != nil {
			slog.Warn("[MEMORY] long-term get failed", "user_id", userID, "error", err)
		}
		return model.NewUserProfile(userID)
	}
	return profile
}

// RecordQuery applies a commutative update for one completed query:
// QueryCount and AreaFrequency[area] are pure increments, safe to apply out
// of order across concurrent fire-and-forget writers. observedLevel is the
// expertise level this single query looked like it came from (inferred from
// query phrasing/complexity elsewhere); it only overwrites ExpertiseLevel
// once it has been observed hysteresisQueries times in a row.
func (s *LongTermStore) RecordQuery(ctx context.Context, userID string, legalAreas []string, observedLevel model.UserType) error {
	profile := s.Get(ctx, userID)

	profile.QueryCount++
	for _, area := range legalAreas {
		if area == "" {
			continue
		}
		profile.AreaFrequency[area]++
	}

	if observedLevel == profile.ExpertiseLevel {
		profile.QueriesSinceLevelChange = 0
	} else {
		profile.QueriesSinceLevelChange++
		if profile.QueriesSinceLevelChange >= hysteresisQueries {
			profile.ExpertiseLevel = observedLevel
			profile.QueriesSinceLevelChange = 0
		}
	}

	if err := s.backend.Update(ctx, profile); err != nil {
		return fmt.Errorf("memory.LongTermStore.RecordQuery: %w", err)
	}
	return nil
}
