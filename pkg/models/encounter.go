package models

import "time"

// EncounterHistoryEntry is one displayable past encounter between a pair of
// users. AreaName is always a coarse label, never a coordinate. Entries expire
// 14 days after creation and are additionally capped per user at write time.
type EncounterHistoryEntry struct {
	ID        string    `json:"id" db:"id"`
	UserAID   string    `json:"user_a_id" db:"user_a_id"`
	UserBID   string    `json:"user_b_id" db:"user_b_id"`
	AreaName  string    `json:"area_name" db:"area_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// OtherUser returns the pair member that is not the given user
func (e *EncounterHistoryEntry) OtherUser(userID string) string {
	if e.UserAID == userID {
		return e.UserBID
	}
	return e.UserAID
}

// IsExpired reports whether the entry has passed its expiry at the given time
func (e *EncounterHistoryEntry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}
