// Package geo provides great-circle distance math and loaders for the
// ZIP centroid reference table.
package geo

import "math"

// earthRadiusMiles is the mean Earth radius. Spherical-earth distances
// are accurate to ~0.5% at US scale, which is sufficient for radius search.
const earthRadiusMiles = 3958.7613

// HaversineMiles returns the great-circle distance in miles between two
// coordinates.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c
}

// Bounds is a latitude/longitude bounding box.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether the coordinate falls within the box.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// RadiusBounds returns a bounding box that fully contains the circle of
// radiusMiles around the center point. Used as a cheap prefilter before
// exact haversine distances are computed.
func RadiusBounds(lat, lng, radiusMiles float64) Bounds {
	dLat := radiusMiles / 69.0 // one degree of latitude is ~69 miles

	// Longitude degrees shrink with latitude. Clamp the cosine away from
	// zero so polar-adjacent inputs don't blow up the box.
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	dLng := radiusMiles / (69.172 * cosLat)

	return Bounds{
		MinLat: lat - dLat,
		MaxLat: lat + dLat,
		MinLng: lng - dLng,
		MaxLng: lng + dLng,
	}
}
