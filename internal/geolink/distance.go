package geolink

import "github.com/tidwall/geodesic"

// DistanceKm returns the geodesic distance between a and b on the WGS84
// ellipsoid, in kilometres.
func DistanceKm(a, b Location) float64 {
	var meters float64
	geodesic.WGS84.Inverse(a.Lat, a.Lng, b.Lat, b.Lng, &meters, nil, nil)
	return meters / 1000
}
