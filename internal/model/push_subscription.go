package model

import "time"

// PushSubscription holds a browser push subscription registered by one of
// the subject's own devices. Geofence events are mirrored to these devices
// in addition to the SMS fan-out.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	SubjectID string    `gorm:"index;size:64;not null"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
