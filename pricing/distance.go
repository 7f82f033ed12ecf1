package pricing

import (
	"fmt"
	"math"
)

const (
	earthRadiusKm = 6371.0

	// MaxSaneDistanceKm bounds what is treated as a real delivery distance.
	// Anything further almost always means latitude and longitude were swapped.
	MaxSaneDistanceKm = 1000.0

	unsetEpsilon = 1e-6
)

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsSet reports whether the point looks like a real location. A zero on either
// axis is the default of an unset coordinate, not a place we deliver to.
func (p Point) IsSet() bool {
	return math.Abs(p.Lat) > unsetEpsilon && math.Abs(p.Lng) > unsetEpsilon
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// Distance returns the great-circle distance between a and b in kilometers.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
