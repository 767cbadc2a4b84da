package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name       string
		lat1, lon1 float64
		lat2, lon2 float64
		want       float64
		tolerance  float64
	}{
		{"same point", 52.52, 13.405, 52.52, 13.405, 0, 0.001},
		// Berlin to Munich, roughly 504 km
		{"berlin to munich", 52.5200, 13.4050, 48.1351, 11.5820, 504000, 2000},
		// 0.001 degrees of latitude is about 111 m
		{"small latitude step", 52.0, 13.0, 52.001, 13.0, 111.2, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.tolerance)
		})
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := Distance(40.0, -74.0, 40.01, -74.02)
	b := Distance(40.01, -74.02, 40.0, -74.0)
	assert.InDelta(t, a, b, 1e-9)
}

func TestUnitVector(t *testing.T) {
	v := UnitVector(37.77, -122.42)
	norm := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	assert.InDelta(t, 1.0, norm, 1e-9)

	north := UnitVector(90, 0)
	assert.InDelta(t, 1.0, north[2], 1e-9)
}

func TestBoundAround(t *testing.T) {
	lat, lon := 52.52, 13.405
	b := BoundAround(lat, lon, 400)

	assert.True(t, b.Contains(lat, lon))
	assert.Less(t, b.MinLat, lat)
	assert.Greater(t, b.MaxLat, lat)
	assert.Less(t, b.MinLon, lon)
	assert.Greater(t, b.MaxLon, lon)

	// A point 300 m north is inside, one 1 km north is not
	assert.True(t, b.Contains(lat+0.0027, lon))
	assert.False(t, b.Contains(lat+0.009, lon))
}
