package models

import "time"

// LoginAudit records a successful sign-in.
type LoginAudit struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string    `gorm:"type:text;not null;index"` // Account that signed in.
	Origin   string    `gorm:"type:text"`                // Caller network origin.
	LoginAt  time.Time `gorm:"not null"`                 // Sign-in timestamp.
}
