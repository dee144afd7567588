package model

import "time"

// Alert kinds.
const (
	AlertKindSOS           = "SOS"
	AlertKindGeofenceEnter = "GEOFENCE_ENTER"
	AlertKindGeofenceExit  = "GEOFENCE_EXIT"
	AlertKindAssistance    = "ASSISTANCE"
)

// Alert statuses. RESOLVED and FALSE_ALARM are terminal.
const (
	AlertStatusActive     = "ACTIVE"
	AlertStatusResolved   = "RESOLVED"
	AlertStatusFalseAlarm = "FALSE_ALARM"
)

// TerminalStatus reports whether an alert status accepts no further
// transitions.
func TerminalStatus(status string) bool {
	return status == AlertStatusResolved || status == AlertStatusFalseAlarm
}

// Alert is an emergency record, created by an SOS trigger or a geofence
// transition, and fanned out to recipients by the dispatcher.
type Alert struct {
	ID          string     `gorm:"primaryKey;size:36"`
	SubjectID   string     `gorm:"index;size:64"`
	SubjectName string     `gorm:"size:256"`
	IsGuest     bool       `gorm:"not null;default:false"`
	GuestName   string     `gorm:"size:256"`
	GuestPhone  string     `gorm:"size:32"`
	Lat         float64    `gorm:"not null"`
	Lng         float64    `gorm:"not null"`
	Kind        string     `gorm:"size:32;not null"`
	Status      string     `gorm:"size:16;not null"`
	Timestamp   time.Time  `gorm:"not null"`
	ResolvedAt  *time.Time
	ResolvedBy  string `gorm:"size:64"`
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Associations
	Attempts []NotificationAttempt `gorm:"foreignKey:AlertID"`
}

// Notification attempt outcomes.
const (
	AttemptPending = "PENDING"
	AttemptSent    = "SENT"
	AttemptFailed  = "FAILED"
)

// NotificationAttempt records the delivery outcome for one recipient of
// one alert, including which channel finally carried the message.
type NotificationAttempt struct {
	ID          int64  `gorm:"autoIncrement;primaryKey"`
	AlertID     string `gorm:"index;size:36;not null"`
	ContactName string `gorm:"size:256"`
	Phone       string `gorm:"size:32;not null"`
	Channel     string `gorm:"size:32"`
	Outcome     string `gorm:"size:16;not null"`
	ErrorDetail string
	PrimaryAt   *time.Time
	FallbackAt  *time.Time
	CreatedAt   time.Time
}
