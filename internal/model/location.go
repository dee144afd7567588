package model

import "time"

// LocationSample is one point of a subject's bounded trailing location
// history, kept for display only. The engine does not own samples beyond
// the current evaluation.
type LocationSample struct {
	ID        int64     `gorm:"autoIncrement;primaryKey"`
	SubjectID string    `gorm:"index;size:64;not null"`
	Lat       float64   `gorm:"not null"`
	Lng       float64   `gorm:"not null"`
	Accuracy  float64
	Source    string    `gorm:"size:32"`
	Timestamp time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}
