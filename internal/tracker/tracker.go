// Package tracker is the location ingestion service: it serializes samples
// per subject, runs the geofence engine, persists the trailing history, and
// turns transitions into alerts for the subject's verified contacts.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeguard-backend/internal/dispatch"
	"safeguard-backend/internal/geofence"
	"safeguard-backend/internal/model"
	"safeguard-backend/internal/store"
)

// RetryPolicy parameterizes capped-retry fix acquisition for the external
// sampler that feeds Push. The tracker itself never retries: a sample
// either arrives or it does not.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// EventSink receives geofence events for device-facing delivery.
type EventSink interface {
	Dispatch(event geofence.Event)
}

// Tracker wires the engine to persistence and alerting.
type Tracker struct {
	store       store.Store
	engine      *geofence.Engine
	dispatcher  *dispatch.Dispatcher
	push        EventSink
	historyKeep int
	log         *zap.Logger

	mu       sync.Mutex
	subjects map[string]*sync.Mutex
}

// New creates a tracker. push may be nil when device push is disabled.
func New(st store.Store, engine *geofence.Engine, d *dispatch.Dispatcher, push EventSink, historyKeep int, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	if historyKeep <= 0 {
		historyKeep = 500
	}
	return &Tracker{
		store:       st,
		engine:      engine,
		dispatcher:  d,
		push:        push,
		historyKeep: historyKeep,
		log:         log,
		subjects:    make(map[string]*sync.Mutex),
	}
}

// subjectLock returns the per-subject mutex, creating it on first use.
// Samples for one subject are applied in order; independent subjects
// proceed in parallel.
func (t *Tracker) subjectLock(subject string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.subjects[subject]
	if !ok {
		l = &sync.Mutex{}
		t.subjects[subject] = l
	}
	return l
}

// Push ingests one location sample for a subject. It returns the geofence
// events the sample caused. Alert fan-out to contacts runs in the
// background; an in-flight fan-out outlives the request that started it.
//
// The engine commits membership as part of Evaluate, so the events it
// returns exist only here: they are turned into alerts before the history
// write, and a failed history append never suppresses them. On a history
// error the events are returned alongside the error.
func (t *Tracker) Push(ctx context.Context, subjectID, subjectName string, sample geofence.Sample) ([]geofence.Event, error) {
	lock := t.subjectLock(subjectID)
	lock.Lock()
	defer lock.Unlock()

	events, err := t.engine.Evaluate(subjectID, sample)
	if err != nil {
		return nil, err
	}

	for _, event := range events {
		if err := t.handleEvent(ctx, subjectID, subjectName, event); err != nil {
			t.log.Error("failed to handle geofence event",
				zap.String("subject", subjectID),
				zap.String("boundary", event.BoundaryID),
				zap.Error(err))
		}
	}

	ts := sample.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if err := t.store.RecordSample(ctx, &model.LocationSample{
		SubjectID: subjectID,
		Lat:       sample.Lat,
		Lng:       sample.Lng,
		Accuracy:  sample.Accuracy,
		Source:    sample.Source,
		Timestamp: ts,
	}, t.historyKeep); err != nil {
		return events, fmt.Errorf("failed to persist sample: %w", err)
	}
	return events, nil
}

// StopTracking clears the subject's membership state so the next sample is
// treated as a first observation.
func (t *Tracker) StopTracking(subject string) {
	t.engine.StopTracking(subject)
}

// handleEvent persists a geofence alert and fans it out. The notify
// toggles on the boundary gate the contact fan-out, not the event itself.
func (t *Tracker) handleEvent(ctx context.Context, subjectID, subjectName string, event geofence.Event) error {
	kind := model.AlertKindGeofenceEnter
	notify := event.NotifyOnEnter
	if event.Kind == geofence.EventExit {
		kind = model.AlertKindGeofenceExit
		notify = event.NotifyOnExit
	}

	alert := model.Alert{
		ID:          uuid.NewString(),
		SubjectID:   subjectID,
		SubjectName: subjectName,
		Lat:         event.Sample.Lat,
		Lng:         event.Sample.Lng,
		Kind:        kind,
		Status:      model.AlertStatusActive,
		Timestamp:   event.Timestamp,
		Notes:       fmt.Sprintf("Boundary %q: %s", event.BoundaryName, event.Kind),
	}
	if err := t.store.CreateAlert(ctx, &alert); err != nil {
		return err
	}

	if t.push != nil {
		t.push.Dispatch(event)
	}

	if !notify {
		return nil
	}

	contacts, err := t.store.VerifiedContacts(ctx, subjectID)
	if err != nil {
		return err
	}
	if len(contacts) == 0 {
		return nil
	}

	recipients := make([]dispatch.Recipient, 0, len(contacts))
	for _, c := range contacts {
		recipients = append(recipients, dispatch.Recipient{Name: c.Name, Phone: c.Phone})
	}
	content := dispatch.Content{SubjectName: subjectName, Lat: event.Sample.Lat, Lng: event.Sample.Lng}

	// Detached from the request context: cancelling the trigger never
	// aborts in-flight sends.
	go func() {
		result := t.dispatcher.Dispatch(context.Background(), content, recipients)
		if err := t.store.AppendAttempts(context.Background(), result.Attempts(alert.ID)); err != nil {
			t.log.Error("failed to record notification attempts",
				zap.String("alert", alert.ID),
				zap.Error(err))
		}
	}()
	return nil
}
