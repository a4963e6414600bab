package geofence

import "math"

// earthRadiusMeters is the spherical-earth approximation used by the
// great-circle formula. Accurate enough for campus-scale radii; this is not a
// geodesic computation.
const earthRadiusMeters = 6371000.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Haversine returns the great-circle distance between two coordinates in meters.
func Haversine(a, b Coordinate) float64 {
	phi1 := radians(a.Lat)
	phi2 := radians(b.Lat)
	dphi := radians(b.Lat - a.Lat)
	dlambda := radians(b.Lon - a.Lon)

	sinPhi := math.Sin(dphi / 2)
	sinLambda := math.Sin(dlambda / 2)
	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
