package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

// ProfileRepo implements providers.ProfileStore over a user_profiles table,
// grounded on internal/retrieval's pgxpool query style (DenseRepo/LexicalRepo).
type ProfileRepo struct {
	pool *pgxpool.Pool
}

// NewProfileRepo creates a ProfileRepo.
func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

var _ providers.ProfileStore = (*ProfileRepo)(nil)

// Get implements providers.ProfileStore. A missing row is not an error at
// this layer — LongTermStore.Get already degrades a nil/err result to a
// fresh profile, so this simply reports the miss.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	var p model.UserProfile
	var areaFreqRaw []byte

	err := r.pool.QueryRow(ctx, `
		SELECT user_id, query_count, area_frequency, expertise_level,
		       queries_since_level_change, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.QueryCount, &areaFreqRaw, &p.ExpertiseLevel, &p.QueriesSinceLevelChange, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("memory.ProfileRepo.Get: %w", err)
	}

	p.AreaFrequency = make(map[string]int64)
	if len(areaFreqRaw) > 0 {
		if err := json.Unmarshal(areaFreqRaw, &p.AreaFrequency); err != nil {
			return nil, fmt.Errorf("memory.ProfileRepo.Get: unmarshal area_frequency: %w", err)
		}
	}
	return &p, nil
}

// Update implements providers.ProfileStore with an upsert, since a user's
// first recorded query has no existing row.
func (r *ProfileRepo) Update(ctx context.Context, profile *model.UserProfile) error {
	areaFreqRaw, err := json.Marshal(profile.AreaFrequency)
	if err != nil {
		return fmt.Errorf("memory.ProfileRepo.Update: marshal area_frequency: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, query_count, area_frequency, expertise_level, queries_since_level_change, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id) DO UPDATE SET
			query_count = EXCLUDED.query_count,
			area_frequency = EXCLUDED.area_frequency,
			expertise_level = EXCLUDED.expertise_level,
			queries_since_level_change = EXCLUDED.queries_since_level_change,
			updated_at = EXCLUDED.updated_at
	`, profile.UserID, profile.QueryCount, areaFreqRaw, profile.ExpertiseLevel, profile.QueriesSinceLevelChange)
	if err != nil {
		return fmt.Errorf("memory.ProfileRepo.Update: %w", err)
	}
	return nil
}
