package geo

import (
	"math"
	"sort"
)

// EarthRadiusKm is Earth's mean radius in kilometres for Haversine calculation.
const EarthRadiusKm = 6371.0088

// ValidCoordinate reports whether lat/lng lie inside the WGS84 ranges.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// HaversineKm calculates the great-circle distance between two points
// on Earth in kilometres using the Haversine formula.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// IsWithinRadius checks if two coordinates are within radiusKm of each other.
func IsWithinRadius(lat1, lng1, lat2, lng2 float64, radiusKm float64) bool {
	return HaversineKm(lat1, lng1, lat2, lng2) <= radiusKm
}

// Ranked pairs an item with its distance from a reference point.
type Ranked[T any] struct {
	Item       T
	DistanceKm float64
}

// Nearest orders items by distance from (lat, lng), keeping at most limit
// entries (limit <= 0 keeps all) and dropping anything beyond maxKm when
// maxKm > 0. Ties keep their input order.
func Nearest[T any](lat, lng float64, items []T, pos func(T) (float64, float64), limit int, maxKm float64) []Ranked[T] {
	out := make([]Ranked[T], 0, len(items))
	for _, it := range items {
		ilat, ilng := pos(it)
		d := HaversineKm(lat, lng, ilat, ilng)
		if maxKm > 0 && d > maxKm {
			continue
		}
		out = append(out, Ranked[T]{Item: it, DistanceKm: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
