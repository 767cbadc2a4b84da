// Package geo holds the geodesy helpers shared by the timeline pipeline
// and the stores.
package geo

import (
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// EarthRadiusMeters is the mean Earth radius
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance between two points in meters
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// UnitVector returns the point on the unit sphere for a coordinate.
// Euclidean distance between unit vectors grows monotonically with
// great-circle distance, so it can order rows by proximity in pgvector.
func UnitVector(lat, lon float64) [3]float64 {
	p := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	return [3]float64{p.X, p.Y, p.Z}
}

// Bounds is a latitude/longitude rectangle
type Bounds struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

// BoundAround returns the rectangle enclosing every point within meters of the coordinate
func BoundAround(lat, lon, meters float64) Bounds {
	b := orbgeo.NewBoundAroundPoint(orb.Point{lon, lat}, meters)
	return Bounds{
		MinLat: b.Min.Lat(),
		MinLon: b.Min.Lon(),
		MaxLat: b.Max.Lat(),
		MaxLon: b.Max.Lon(),
	}
}

// Contains reports whether the coordinate lies inside the rectangle
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}
