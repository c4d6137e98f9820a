package models

// UpdateLocationRequest carries one coordinate sample. Pointers keep zero
// coordinates (the equator, the prime meridian) distinguishable from a
// missing field.
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
}
