package models

import "time"

// Alert result reason codes
const (
	AlertReasonCooldown = "cooldown"
	AlertReasonNone     = "none"
)

// CrossedAlertEvent records that a subject was alerted about some nearby user.
// CandidateUserID exists only for the per-pair dedupe window and is never
// serialized into any response.
type CrossedAlertEvent struct {
	ID              string    `json:"id" db:"id"`
	SubjectUserID   string    `json:"subject_user_id" db:"subject_user_id"`
	CandidateUserID string    `json:"-" db:"candidate_user_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	ExpiresAt       time.Time `json:"expires_at" db:"expires_at"`
}

// IsExpired reports whether the event has passed its expiry at the given time
func (e *CrossedAlertEvent) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// CrossedAlertResult is the full response of an alert detection. The type has
// no identifier field at all, so a response structurally cannot reveal who
// was nearby.
type CrossedAlertResult struct {
	Triggered bool   `json:"triggered"`
	Reason    string `json:"reason,omitempty"`
}
