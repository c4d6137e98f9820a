package models

import (
	"time"

	"github.com/lib/pq"
)

// VerificationStatus values for a user profile
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// User is the location facet of the platform user profile consumed by clover.
// Profile ownership (verification, preferences, activity) lives with the user
// service; clover reads those fields and owns the location columns.
type User struct {
	ID                 string         `json:"id" db:"id"`
	Name               string         `json:"name" db:"name"`
	PhotoURL           *string        `json:"photo_url,omitempty" db:"photo_url"`
	DateOfBirth        *time.Time     `json:"date_of_birth,omitempty" db:"date_of_birth"`
	City               *string        `json:"city,omitempty" db:"city"`
	Category           string         `json:"category" db:"category"`
	Interests          pq.StringArray `json:"interests" db:"interests"`
	VerificationStatus string         `json:"verification_status" db:"verification_status"`
	IsActive           bool           `json:"is_active" db:"is_active"`
	HideDistance       bool           `json:"hide_distance" db:"hide_distance"`

	// Raw location - never exposed to other users
	Latitude              *float64   `json:"-" db:"latitude"`
	Longitude             *float64   `json:"-" db:"longitude"`
	LastLocationUpdatedAt *time.Time `json:"-" db:"last_location_updated_at"`

	// Published projection - the only coordinate other users ever see
	PublishedLat *float64   `json:"published_lat,omitempty" db:"published_lat"`
	PublishedLng *float64   `json:"published_lng,omitempty" db:"published_lng"`
	PublishedAt  *time.Time `json:"published_at,omitempty" db:"published_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsVerified reports whether the user passed profile verification
func (u *User) IsVerified() bool {
	return u.VerificationStatus == VerificationVerified
}

// HasRawLocation reports whether a raw coordinate has been recorded
func (u *User) HasRawLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// HasPublishedLocation reports whether a published coordinate exists
func (u *User) HasPublishedLocation() bool {
	return u.PublishedLat != nil && u.PublishedLng != nil
}

// Age derives the user's age in years from their date of birth.
// Returns 0 when the date of birth is unknown.
func (u *User) Age(now time.Time) int {
	if u.DateOfBirth == nil {
		return 0
	}
	dob := *u.DateOfBirth
	age := now.Year() - dob.Year()
	if now.YearDay() < dob.YearDay() {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// WantsCategory reports whether the user's interest set includes the category
func (u *User) WantsCategory(category string) bool {
	for _, c := range u.Interests {
		if c == category {
			return true
		}
	}
	return false
}
