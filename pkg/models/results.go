package models

import "time"

// Gated outcome reason codes. Throttled calls are steady state, not errors,
// so they ride on success payloads rather than error responses.
const (
	ReasonUserNotFound    = "user_not_found"
	ReasonRateLimited     = "rate_limited"
	ReasonPublishCooldown = "publish_cooldown"
	ReasonNotVerified     = "not_verified"
)

// RecordLocationResult is the outcome of a raw location ingest
type RecordLocationResult struct {
	Success     bool   `json:"success"`
	NearbyCount int    `json:"nearby_count"`
	Skipped     bool   `json:"skipped,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// PublishLocationResult is the outcome of a published projection update
type PublishLocationResult struct {
	Success       bool       `json:"success"`
	Published     bool       `json:"published"`
	Reason        string     `json:"reason,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	NextPublishAt *time.Time `json:"next_publish_at,omitempty"`
}

// PairUserView is the profile summary embedded in a crossed path view
type PairUserView struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Age        int     `json:"age"`
	PhotoURL   *string `json:"photo_url,omitempty"`
	IsVerified bool    `json:"is_verified"`
}

// CrossedPathView is the read projection of a pair counter for one side
type CrossedPathView struct {
	ID                  string       `json:"id"`
	Count               int          `json:"count"`
	LastCrossedAt       time.Time    `json:"last_crossed_at"`
	IsUnlocked          bool         `json:"is_unlocked"`
	UnlockExpiresAt     *time.Time   `json:"unlock_expires_at,omitempty"`
	UnlockTimeRemaining string       `json:"unlock_time_remaining"`
	ProgressToUnlock    float64      `json:"progress_to_unlock"`
	User                PairUserView `json:"user"`
}

// UnlockStatus is the result of a pair unlock check
type UnlockStatus struct {
	IsUnlocked          bool       `json:"is_unlocked"`
	Count               int        `json:"count"`
	UnlockExpiresAt     *time.Time `json:"unlock_expires_at,omitempty"`
	UnlockTimeRemaining string     `json:"unlock_time_remaining"`
}

// HistoryEntryView is one displayable encounter for a user
type HistoryEntryView struct {
	ID          string    `json:"id"`
	OtherUserID string    `json:"other_user_id"`
	AreaName    string    `json:"area_name"`
	CreatedAt   time.Time `json:"created_at"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
	Initial     string    `json:"initial"`
}

// CleanupResult reports how many expired records a cleanup pass deleted
type CleanupResult struct {
	Deleted int64 `json:"deleted"`
}
