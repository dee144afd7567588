// Package geo provides the plain-coordinate geometry used by the geofence
// engine: great-circle distance, circle and polygon containment, and
// coordinate range validation. It has no knowledge of maps, persistence,
// or rendering.
package geo

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidationError reports a malformed shape or an out-of-range coordinate.
// It is always raised before any state is mutated.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func Invalidf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ValidatePoint checks that a coordinate pair is within valid ranges.
func ValidatePoint(p Point) error {
	if p.Lat < -90 || p.Lat > 90 {
		return Invalidf("latitude %v out of range [-90, 90]", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return Invalidf("longitude %v out of range [-180, 180]", p.Lng)
	}
	return nil
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Shape is the boundary geometry variant. Exactly two implementations
// exist: Circle and Polygon. Consumers switch on the concrete type.
type Shape interface {
	// Contains reports whether p is inside the shape, treating the
	// shape's edge as inside.
	Contains(p Point) bool
	// Validate checks the shape's structural invariants.
	Validate() error
}

// Circle is a center point with a radius in meters.
type Circle struct {
	Center       Point
	RadiusMeters float64
}

func (c Circle) Contains(p Point) bool {
	return Distance(c.Center, p) <= c.RadiusMeters
}

func (c Circle) Validate() error {
	if err := ValidatePoint(c.Center); err != nil {
		return err
	}
	if c.RadiusMeters <= 0 {
		return Invalidf("circle radius must be positive, got %v", c.RadiusMeters)
	}
	return nil
}

// Polygon is an ordered vertex ring. The closing edge from the last vertex
// back to the first is implicit.
type Polygon struct {
	Vertices []Point
}

func (pg Polygon) Validate() error {
	if len(pg.Vertices) < 3 {
		return Invalidf("polygon needs at least 3 vertices, got %d", len(pg.Vertices))
	}
	for i, v := range pg.Vertices {
		if err := ValidatePoint(v); err != nil {
			return Invalidf("polygon vertex %d: %v", i, err)
		}
	}
	return nil
}

// Contains uses even-odd ray casting over the vertex ring. Points lying on
// an edge count as inside.
func (pg Polygon) Contains(p Point) bool {
	n := len(pg.Vertices)
	if n < 3 {
		return false
	}

	for i := 0; i < n; i++ {
		if onSegment(pg.Vertices[i], pg.Vertices[(i+1)%n], p) {
			return true
		}
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := pg.Vertices[i], pg.Vertices[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) {
			crossLng := (vj.Lng-vi.Lng)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lng
			if p.Lng < crossLng {
				inside = !inside
			}
		}
	}
	return inside
}

const segmentEpsilon = 1e-12

// onSegment reports whether p lies on the segment a-b, within a small
// tolerance for floating point error.
func onSegment(a, b, p Point) bool {
	cross := (b.Lng-a.Lng)*(p.Lat-a.Lat) - (b.Lat-a.Lat)*(p.Lng-a.Lng)
	if math.Abs(cross) > segmentEpsilon {
		return false
	}
	if p.Lat < math.Min(a.Lat, b.Lat)-segmentEpsilon || p.Lat > math.Max(a.Lat, b.Lat)+segmentEpsilon {
		return false
	}
	if p.Lng < math.Min(a.Lng, b.Lng)-segmentEpsilon || p.Lng > math.Max(a.Lng, b.Lng)+segmentEpsilon {
		return false
	}
	return true
}
