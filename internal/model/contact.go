package model

import "time"

// Contact is an emergency contact owned by contact management elsewhere;
// the dispatcher only consumes it as a recipient.
type Contact struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       string `gorm:"index;size:64;not null"`
	Name         string `gorm:"size:256;not null"`
	Phone        string `gorm:"size:32;not null"` // E.164
	Relationship string `gorm:"size:64"`
	Verified     bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
