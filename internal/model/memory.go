package model

import "time"

// ShortTermMessage is one turn of a session's bounded conversational window
// (§4.14). Sessions keep at most short_term_window messages and expire the
// whole window after 24h of inactivity.
type ShortTermMessage struct {
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ShortTermMemory is the FIFO window of recent turns for one session.
type ShortTermMemory struct {
	SessionID string             `json:"session_id"`
	Messages  []ShortTermMessage `json:"messages"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// UserProfile is the long-term, cross-session memory of a user (§4.14).
// QueryCount and AreaFrequency are updated via commutative increments so
// concurrent fire-and-forget writers from different requests never clobber
// each other; ExpertiseLevel uses last-write-wins with a 5-query hysteresis
// to avoid flapping between levels on a single atypical query.
type UserProfile struct {
	UserID                  string         `json:"user_id"`
	QueryCount              int64          `json:"query_count"`
	AreaFrequency           map[string]int64 `json:"area_frequency"`
	ExpertiseLevel          UserType       `json:"expertise_level"`
	QueriesSinceLevelChange int            `json:"queries_since_level_change"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// NewUserProfile returns a zero-value profile for a first-time user.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:         userID,
		AreaFrequency:  make(map[string]int64),
		ExpertiseLevel: UserTypeCitizen,
		UpdatedAt:      time.Now(),
	}
}
