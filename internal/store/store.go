// Package store is the durable persistence layer. The database is the
// single source of truth for boundaries and alerts; in-memory state (the
// geofence engine, HTTP response caches) is hydrated from here.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"safeguard-backend/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrTerminalStatus is returned when a transition is attempted on an
	// alert that is already RESOLVED or FALSE_ALARM.
	ErrTerminalStatus = errors.New("alert status is terminal")
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	LoadBoundaries(ctx context.Context) ([]model.Boundary, error)
	GetBoundary(ctx context.Context, id string) (model.Boundary, error)
	SaveBoundary(ctx context.Context, b *model.Boundary) error
	DeleteBoundary(ctx context.Context, id string) error

	CreateAlert(ctx context.Context, a *model.Alert) error
	GetAlert(ctx context.Context, id string) (model.Alert, error)
	ListAlerts(ctx context.Context, subjectID string) ([]model.Alert, error)
	UpdateAlertStatus(ctx context.Context, id, status, resolvedBy, notes string) error
	AppendAttempts(ctx context.Context, attempts []model.NotificationAttempt) error

	RecordSample(ctx context.Context, s *model.LocationSample, keep int) error
	RecentSamples(ctx context.Context, subjectID string, limit int) ([]model.LocationSample, error)

	VerifiedContacts(ctx context.Context, userID string) ([]model.Contact, error)

	SubscriptionsForSubject(ctx context.Context, subjectID string) ([]model.PushSubscription, error)
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

// --- Boundaries ---

func (s *gormStore) LoadBoundaries(ctx context.Context) ([]model.Boundary, error) {
	var boundaries []model.Boundary
	if err := s.db.WithContext(ctx).Find(&boundaries).Error; err != nil {
		return nil, fmt.Errorf("failed to load boundaries: %w", err)
	}
	return boundaries, nil
}

func (s *gormStore) GetBoundary(ctx context.Context, id string) (model.Boundary, error) {
	var b model.Boundary
	err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Boundary{}, ErrNotFound
	}
	if err != nil {
		return model.Boundary{}, fmt.Errorf("failed to get boundary %s: %w", id, err)
	}
	return b, nil
}

func (s *gormStore) SaveBoundary(ctx context.Context, b *model.Boundary) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"owner_id", "name", "kind", "radius_meters", "vertices",
			"schedule", "active", "notify_on_enter", "notify_on_exit", "updated_at",
		}),
	}).Create(b).Error; err != nil {
		return fmt.Errorf("failed to save boundary %s: %w", b.ID, err)
	}
	return nil
}

func (s *gormStore) DeleteBoundary(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&model.Boundary{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete boundary %s: %w", id, err)
	}
	return nil
}

// --- Alerts ---

func (s *gormStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (s *gormStore) GetAlert(ctx context.Context, id string) (model.Alert, error) {
	var alert model.Alert
	err := s.db.WithContext(ctx).Preload("Attempts").First(&alert, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Alert{}, ErrNotFound
	}
	if err != nil {
		return model.Alert{}, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return alert, nil
}

func (s *gormStore) ListAlerts(ctx context.Context, subjectID string) ([]model.Alert, error) {
	q := s.db.WithContext(ctx).Preload("Attempts").Order("timestamp DESC")
	if subjectID != "" {
		q = q.Where("subject_id = ?", subjectID)
	}
	var alerts []model.Alert
	if err := q.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// UpdateAlertStatus transitions an alert out of ACTIVE. The status
// predicate on the UPDATE makes terminal statuses immutable even under
// concurrent resolutions.
func (s *gormStore) UpdateAlertStatus(ctx context.Context, id, status, resolvedBy, notes string) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":      status,
		"resolved_at": &now,
		"resolved_by": resolvedBy,
		"updated_at":  now,
	}
	if notes != "" {
		updates["notes"] = notes
	}

	res := s.db.WithContext(ctx).
		Model(&model.Alert{}).
		Where("id = ? AND status = ?", id, model.AlertStatusActive).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update alert %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Alert{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check alert %s: %w", id, err)
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrTerminalStatus
	}
	return nil
}

func (s *gormStore) AppendAttempts(ctx context.Context, attempts []model.NotificationAttempt) error {
	if len(attempts) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&attempts).Error; err != nil {
		return fmt.Errorf("failed to record notification attempts: %w", err)
	}
	return nil
}

// --- Location history ---

// RecordSample appends a sample and trims the subject's history beyond
// the keep window. History is display-only; the geofence engine never
// reads it back.
func (s *gormStore) RecordSample(ctx context.Context, sample *model.LocationSample, keep int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sample).Error; err != nil {
			return fmt.Errorf("failed to record location sample: %w", err)
		}
		if keep <= 0 {
			return nil
		}

		var cutoff model.LocationSample
		err := tx.Where("subject_id = ?", sample.SubjectID).
			Order("timestamp DESC").
			Offset(keep - 1).
			First(&cutoff).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find history cutoff: %w", err)
		}

		if err := tx.Where("subject_id = ? AND timestamp < ?", sample.SubjectID, cutoff.Timestamp).
			Delete(&model.LocationSample{}).Error; err != nil {
			return fmt.Errorf("failed to trim location history: %w", err)
		}
		return nil
	})
}

func (s *gormStore) RecentSamples(ctx context.Context, subjectID string, limit int) ([]model.LocationSample, error) {
	if limit <= 0 {
		limit = 50
	}
	var samples []model.LocationSample
	err := s.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&samples).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load location history: %w", err)
	}
	return samples, nil
}

// --- Contacts ---

func (s *gormStore) VerifiedContacts(ctx context.Context, userID string) ([]model.Contact, error) {
	var contacts []model.Contact
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND verified = ?", userID, true).
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts for %s: %w", userID, err)
	}
	return contacts, nil
}

// --- Push subscriptions ---

func (s *gormStore) SubscriptionsForSubject(ctx context.Context, subjectID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).Where("subject_id = ?", subjectID).Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions for %s: %w", subjectID, err)
	}
	return subs, nil
}

func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"subject_id", "p256dh", "auth"}),
	}).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PushSubscription{}, ErrNotFound
	}
	if err != nil {
		return model.PushSubscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}
