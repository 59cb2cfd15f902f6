// Package geo implements great-circle proximity filtering.
//
// Everything here is pure: no I/O, no shared state.
package geo

import "math"

const (
	// EarthRadiusKm is the mean Earth radius used by the haversine formula.
	EarthRadiusKm = 6371

	// MilesPerMeter converts metres to statute miles.
	MilesPerMeter = 0.000621371192

	// DefaultRadiusMiles is the fixed radius used for nearby-store searches.
	DefaultRadiusMiles = 10.0
)

// Point is a WGS 84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// DistanceMiles returns the haversine distance between a and b in statute miles.
// Coordinates are not range-checked; out-of-range input still yields a finite value.
func DistanceMiles(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * 1000 * c * MilesPerMeter
}

// WithinRadius reports whether distance is strictly inside radius.
// The boundary itself is excluded.
func WithinRadius(distance, radius float64) bool {
	return distance < radius
}

// Nearby returns the candidates whose position lies strictly within radiusMiles of origin.
// Output keeps candidate order; it is a filter, not a sort.
func Nearby[T any](origin Point, candidates []T, radiusMiles float64, position func(T) Point) []T {
	out := make([]T, 0)
	for _, c := range candidates {
		if WithinRadius(DistanceMiles(position(c), origin), radiusMiles) {
			out = append(out, c)
		}
	}
	return out
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
