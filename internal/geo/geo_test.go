package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	// Connaught Place to India Gate is roughly 2.2 km.
	cp := Point{Lat: 28.6315, Lng: 77.2167}
	ig := Point{Lat: 28.6129, Lng: 77.2295}

	d := Distance(cp, ig)
	assert.InDelta(t, 2400, d, 300, "distance should be on the order of 2.4 km")

	assert.Equal(t, 0.0, Distance(cp, cp), "distance to self should be zero")
}

func TestCircleContains(t *testing.T) {
	c := Circle{Center: Point{Lat: 28.6139, Lng: 77.2090}, RadiusMeters: 200}

	// The exact center is inside.
	assert.True(t, c.Contains(Point{Lat: 28.6139, Lng: 77.2090}))

	// ~111m north of center (0.001 degrees of latitude) is inside.
	assert.True(t, c.Contains(Point{Lat: 28.6149, Lng: 77.2090}))

	// ~555m north is outside.
	assert.False(t, c.Contains(Point{Lat: 28.6189, Lng: 77.2090}))

	// Containment agrees with the distance predicate for a spread of points.
	for _, p := range []Point{
		{Lat: 28.6139, Lng: 77.2090},
		{Lat: 28.6150, Lng: 77.2101},
		{Lat: 28.6000, Lng: 77.2000},
		{Lat: 28.6139, Lng: 77.2110},
	} {
		assert.Equal(t, Distance(c.Center, p) <= c.RadiusMeters, c.Contains(p))
	}
}

func TestCircleValidate(t *testing.T) {
	assert.NoError(t, Circle{Center: Point{Lat: 10, Lng: 20}, RadiusMeters: 50}.Validate())

	err := Circle{Center: Point{Lat: 10, Lng: 20}, RadiusMeters: 0}.Validate()
	assert.Error(t, err)
	assert.IsType(t, &ValidationError{}, err)

	err = Circle{Center: Point{Lat: 91, Lng: 20}, RadiusMeters: 50}.Validate()
	assert.Error(t, err)
}

func TestPolygonContains(t *testing.T) {
	// A unit square around the origin.
	square := Polygon{Vertices: []Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 1, Lng: 1},
		{Lat: 1, Lng: 0},
	}}

	assert.True(t, square.Contains(Point{Lat: 0.5, Lng: 0.5}), "interior point")
	assert.True(t, square.Contains(Point{Lat: 0, Lng: 0.5}), "point on edge counts as inside")
	assert.True(t, square.Contains(Point{Lat: 1, Lng: 1}), "vertex counts as inside")
	assert.False(t, square.Contains(Point{Lat: 2, Lng: 2}), "point outside")
	assert.False(t, square.Contains(Point{Lat: 0.5, Lng: 1.5}), "point east of the square")
	assert.False(t, square.Contains(Point{Lat: -0.5, Lng: 0.5}), "point south of the square")
}

func TestPolygonContainsConcave(t *testing.T) {
	// An L-shaped polygon: the notch at the top right is outside.
	l := Polygon{Vertices: []Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 2},
		{Lat: 1, Lng: 2},
		{Lat: 1, Lng: 1},
		{Lat: 2, Lng: 1},
		{Lat: 2, Lng: 0},
	}}

	assert.True(t, l.Contains(Point{Lat: 0.5, Lng: 0.5}))
	assert.True(t, l.Contains(Point{Lat: 1.5, Lng: 0.5}))
	assert.False(t, l.Contains(Point{Lat: 1.5, Lng: 1.5}), "the notch is outside")
}

func TestPolygonOutsideConvexHull(t *testing.T) {
	tri := Polygon{Vertices: []Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 1, Lng: 0.5},
	}}

	// Any point beyond the hull must be outside.
	for _, p := range []Point{
		{Lat: 5, Lng: 5},
		{Lat: -1, Lng: 0.5},
		{Lat: 0.5, Lng: 3},
		{Lat: 2, Lng: -2},
	} {
		assert.False(t, tri.Contains(p), "point %+v is outside the hull", p)
	}
}

func TestPolygonValidate(t *testing.T) {
	err := Polygon{Vertices: []Point{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}}.Validate()
	assert.Error(t, err, "two vertices are not a polygon")

	err = Polygon{Vertices: []Point{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 181}, {Lat: 1, Lng: 0}}}.Validate()
	assert.Error(t, err, "vertex out of range")

	assert.NoError(t, Polygon{Vertices: []Point{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}, {Lat: 1, Lng: 0}}}.Validate())
}

func TestValidatePoint(t *testing.T) {
	assert.NoError(t, ValidatePoint(Point{Lat: -90, Lng: 180}))
	assert.Error(t, ValidatePoint(Point{Lat: -90.01, Lng: 0}))
	assert.Error(t, ValidatePoint(Point{Lat: 0, Lng: 180.01}))
}
