package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"safeguard-backend/internal/geo"
)

// Boundary kinds. The shape is an exhaustive two-way variant; every
// consumer must handle both.
const (
	BoundaryKindCircle  = "circle"
	BoundaryKindPolygon = "polygon"
)

// PointList stores an ordered coordinate ring as a JSON column.
type PointList []geo.Point

func (p PointList) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (p *PointList) Scan(value any) error {
	if value == nil {
		*p = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into PointList", value)
	}
}

// ScheduleSpec restricts when a boundary applies: a daily time window plus
// a set of weekdays (0 = Sunday). The zero value means "always active".
type ScheduleSpec struct {
	StartTime string `json:"startTime"` // HH:mm
	EndTime   string `json:"endTime"`   // HH:mm
	Days      []int  `json:"days"`
}

// HasWindow reports whether a schedule window is configured at all.
func (s ScheduleSpec) HasWindow() bool {
	return s.StartTime != "" || s.EndTime != "" || len(s.Days) > 0
}

func (s ScheduleSpec) Value() (driver.Value, error) {
	if !s.HasWindow() {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *ScheduleSpec) Scan(value any) error {
	if value == nil {
		*s = ScheduleSpec{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into ScheduleSpec", value)
	}
}

// Boundary is the durable record of a geofence boundary. The database is
// the single source of truth; the in-memory engine is hydrated from it.
type Boundary struct {
	ID            string       `gorm:"primaryKey;size:36" json:"id"`
	OwnerID       string       `gorm:"index;size:64" json:"ownerId"`
	Name          string       `gorm:"size:256;not null" json:"name"`
	Kind          string       `gorm:"size:16;not null" json:"kind"`
	RadiusMeters  float64      `json:"radiusMeters,omitempty"`
	Vertices      PointList    `gorm:"type:text" json:"vertices"`
	Schedule      ScheduleSpec `gorm:"type:text" json:"schedule"`
	Active        bool         `gorm:"not null;default:true" json:"active"`
	NotifyOnEnter bool         `gorm:"not null;default:true" json:"notifyOnEnter"`
	NotifyOnExit  bool         `gorm:"not null;default:true" json:"notifyOnExit"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Shape builds the geometry variant for this record. A circle record keeps
// its center as the single vertex.
func (b Boundary) Shape() (geo.Shape, error) {
	switch b.Kind {
	case BoundaryKindCircle:
		if len(b.Vertices) != 1 {
			return nil, geo.Invalidf("circle boundary needs exactly one center vertex, got %d", len(b.Vertices))
		}
		return geo.Circle{Center: b.Vertices[0], RadiusMeters: b.RadiusMeters}, nil
	case BoundaryKindPolygon:
		return geo.Polygon{Vertices: b.Vertices}, nil
	default:
		return nil, geo.Invalidf("unknown boundary kind %q", b.Kind)
	}
}
