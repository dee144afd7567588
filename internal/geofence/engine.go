// Package geofence maintains the in-memory boundary set and per-subject
// membership state, and turns a stream of location samples into
// enter/exit transition events.
package geofence

import (
	"sync"
	"time"

	"safeguard-backend/internal/geo"
	"safeguard-backend/internal/model"
)

// EventKind is a zone transition direction.
type EventKind string

const (
	EventEnter EventKind = "ENTER"
	EventExit  EventKind = "EXIT"
)

// Sample is one location observation for a subject.
type Sample struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

func (s Sample) point() geo.Point {
	return geo.Point{Lat: s.Lat, Lng: s.Lng}
}

// Event is an enter or exit transition detected between consecutive
// evaluations of a subject against a boundary.
type Event struct {
	Subject       string    `json:"subject"`
	BoundaryID    string    `json:"boundaryId"`
	BoundaryName  string    `json:"boundaryName"`
	Kind          EventKind `json:"kind"`
	Sample        Sample    `json:"sample"`
	Timestamp     time.Time `json:"timestamp"`
	NotifyOnEnter bool      `json:"-"`
	NotifyOnExit  bool      `json:"-"`
}

// Boundary is the engine's view of a geofence boundary: plain coordinates
// and a schedule, nothing from the map/rendering layer.
type Boundary struct {
	ID            string
	OwnerID       string
	Name          string
	Shape         geo.Shape
	Schedule      *Schedule
	Active        bool
	NotifyOnEnter bool
	NotifyOnExit  bool
}

// FromRecord converts a stored boundary record into the engine's domain
// type, validating shape invariants on the way in.
func FromRecord(rec model.Boundary) (Boundary, error) {
	shape, err := rec.Shape()
	if err != nil {
		return Boundary{}, err
	}
	if err := shape.Validate(); err != nil {
		return Boundary{}, err
	}

	var sched *Schedule
	if rec.Schedule.HasWindow() {
		sched, err = ParseSchedule(rec.Schedule)
		if err != nil {
			return Boundary{}, err
		}
	}

	return Boundary{
		ID:            rec.ID,
		OwnerID:       rec.OwnerID,
		Name:          rec.Name,
		Shape:         shape,
		Schedule:      sched,
		Active:        rec.Active,
		NotifyOnEnter: rec.NotifyOnEnter,
		NotifyOnExit:  rec.NotifyOnExit,
	}, nil
}

type memberKey struct {
	subject    string
	boundaryID string
}

// Engine evaluates location samples against the boundary set.
//
// Samples for one subject must be applied in order: the engine's locking
// makes concurrent calls safe, but it cannot restore ordering the caller
// has already lost. Independent subjects may be evaluated in parallel.
type Engine struct {
	mu         sync.RWMutex
	boundaries map[string]Boundary
	membership map[memberKey]bool
}

func New() *Engine {
	return &Engine{
		boundaries: make(map[string]Boundary),
		membership: make(map[memberKey]bool),
	}
}

// UpsertBoundary validates the boundary and replaces any existing boundary
// with the same id. Nothing is mutated on a validation failure.
func (e *Engine) UpsertBoundary(b Boundary) error {
	if b.ID == "" {
		return geo.Invalidf("boundary id is required")
	}
	if b.Shape == nil {
		return geo.Invalidf("boundary %q has no shape", b.ID)
	}
	if err := b.Shape.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.boundaries[b.ID] = b
	return nil
}

// RemoveBoundary deletes the boundary and every membership entry keyed to
// it. Removing an unknown id is a no-op.
func (e *Engine) RemoveBoundary(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.boundaries, id)
	for k := range e.membership {
		if k.boundaryID == id {
			delete(e.membership, k)
		}
	}
}

// StopTracking discards all membership state for a subject.
func (e *Engine) StopTracking(subject string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for k := range e.membership {
		if k.subject == subject {
			delete(e.membership, k)
		}
	}
}

// BoundaryCount returns the number of boundaries currently loaded.
func (e *Engine) BoundaryCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.boundaries)
}

// Evaluate compares a sample against every applicable boundary and returns
// the transitions it caused. Out-of-range samples are rejected before any
// membership state changes.
//
// A boundary whose schedule does not cover the sample's timestamp is
// skipped entirely: no membership update and no event, so reactivating a
// schedule never produces a spurious transition from stale state.
func (e *Engine) Evaluate(subject string, s Sample) ([]Event, error) {
	if err := geo.ValidatePoint(s.point()); err != nil {
		return nil, err
	}

	at := s.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var events []Event
	for _, b := range e.boundaries {
		if !b.Active {
			continue
		}
		if b.Schedule != nil && !b.Schedule.AppliesAt(at) {
			continue
		}

		inside := b.Shape.Contains(s.point())
		key := memberKey{subject: subject, boundaryID: b.ID}
		was := e.membership[key]
		e.membership[key] = inside

		if inside == was {
			continue
		}
		kind := EventEnter
		if was {
			kind = EventExit
		}
		events = append(events, Event{
			Subject:       subject,
			BoundaryID:    b.ID,
			BoundaryName:  b.Name,
			Kind:          kind,
			Sample:        s,
			Timestamp:     at,
			NotifyOnEnter: b.NotifyOnEnter,
			NotifyOnExit:  b.NotifyOnExit,
		})
	}
	return events, nil
}
