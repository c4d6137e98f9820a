// Package geo provides great-circle distance math for proximity scans
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for haversine distance
const EarthRadiusMeters = 6371000.0

// Distance returns the haversine distance in meters between two lat/lng points
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// WithinRadius reports whether two points are at most radiusMeters apart.
// The boundary is inclusive: a point exactly on the radius counts.
func WithinRadius(lat1, lng1, lat2, lng2, radiusMeters float64) bool {
	return Distance(lat1, lng1, lat2, lng2) <= radiusMeters
}
