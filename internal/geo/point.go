// Package geo provides postal-code centroid lookup and distance helpers used
// to approximate how far an adopter is from a shelter.
package geo

import "math"

// EarthRadiusMiles is the mean Earth radius used by Haversine.
const EarthRadiusMiles = 3958.7613

// milesPerDegreeLat is the approximate length of one degree of latitude.
const milesPerDegreeLat = 69.0

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Haversine returns the great-circle distance between a and b in miles.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BoundingBox is an axis-aligned lat/lon rectangle.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBoxAround returns a box that contains every point within miles of
// center. It over-approximates the circle and is only a pre-filter; callers
// must still confirm with Haversine.
func BoundingBoxAround(center Point, miles float64) BoundingBox {
	dLat := miles / milesPerDegreeLat

	// Near the poles cos(lat) approaches zero, so the longitude span is
	// widened to the whole globe instead of dividing by ~0.
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	dLon := 180.0
	if math.Abs(cosLat) > 1e-6 {
		dLon = math.Min(180.0, miles/(milesPerDegreeLat*math.Abs(cosLat)))
	}

	return BoundingBox{
		MinLat: center.Lat - dLat,
		MaxLat: center.Lat + dLat,
		MinLon: center.Lon - dLon,
		MaxLon: center.Lon + dLon,
	}
}

// Contains reports whether p lies within the box (inclusive).
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}
