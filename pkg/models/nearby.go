package models

import "time"

// Freshness classifies the age of a published location for map rendering
type Freshness string

const (
	FreshnessSolid Freshness = "solid" // published within 3 days
	FreshnessFaded Freshness = "faded" // published within 6 days
)

// Freshness tier boundaries
const (
	FreshnessSolidMaxAge = 3 * 24 * time.Hour
	FreshnessFadedMaxAge = 6 * 24 * time.Hour
)

// ClassifyFreshness maps a publish age to a tier. The second return is false
// when the location is too stale to show at all; stale markers are excluded
// from responses, never returned as hidden.
func ClassifyFreshness(publishedAt, now time.Time) (Freshness, bool) {
	age := now.Sub(publishedAt)
	switch {
	case age <= FreshnessSolidMaxAge:
		return FreshnessSolid, true
	case age <= FreshnessFadedMaxAge:
		return FreshnessFaded, true
	default:
		return "", false
	}
}

// NearbyUser is a map marker projection of another user. Coordinates are the
// published projection; display fuzzing is driven client side by HideDistance.
type NearbyUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	PublishedLat float64   `json:"published_lat"`
	PublishedLng float64   `json:"published_lng"`
	Freshness    Freshness `json:"freshness"`
	PhotoURL     *string   `json:"photo_url,omitempty"`
	IsVerified   bool      `json:"is_verified"`
	HideDistance bool      `json:"hide_distance"`
}
