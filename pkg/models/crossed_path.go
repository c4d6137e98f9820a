package models

import "time"

// CrossedPath is the per-pair crossing counter. Exactly one row exists per
// unordered pair: UserAID always sorts before UserBID, so an encounter
// recorded from either direction lands on the same row.
type CrossedPath struct {
	ID              string     `json:"id" db:"id"`
	UserAID         string     `json:"user_a_id" db:"user_a_id"`
	UserBID         string     `json:"user_b_id" db:"user_b_id"`
	Count           int        `json:"count" db:"count"`
	LastCrossedAt   time.Time  `json:"last_crossed_at" db:"last_crossed_at"`
	UnlockExpiresAt *time.Time `json:"unlock_expires_at,omitempty" db:"unlock_expires_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// CanonicalPair orders two user ids into the canonical (userA, userB) key
// with the lower id first.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// OtherUser returns the pair member that is not the given user
func (p *CrossedPath) OtherUser(userID string) string {
	if p.UserAID == userID {
		return p.UserBID
	}
	return p.UserAID
}

// IsUnlocked reports whether the pair's unlock window is open at the given time
func (p *CrossedPath) IsUnlocked(now time.Time) bool {
	return p.UnlockExpiresAt != nil && p.UnlockExpiresAt.After(now)
}
