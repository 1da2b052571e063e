package domain

import "math"

const earthRadiusMeters = 6371000.0

// DefaultSearchRadiusMeters is used by nearby queries when the caller does not pass a radius.
const DefaultSearchRadiusMeters = 10000

// GeoLocation is a WGS84 point with an optional human-readable address.
type GeoLocation struct {
	Latitude  float64
	Longitude float64
	Address   *string
}

// Valid reports whether the coordinates are within WGS84 bounds.
func (g GeoLocation) Valid() bool {
	return g.Latitude >= -90 && g.Latitude <= 90 && g.Longitude >= -180 && g.Longitude <= 180
}

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(a, b GeoLocation) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func cloneGeoLocation(g *GeoLocation) *GeoLocation {
	if g == nil {
		return nil
	}
	out := *g
	out.Address = cloneStringPtr(g.Address)
	return &out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
