package models

import (
	"time"

	"gorm.io/datatypes"
)

// User represents a blog account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Name     string `gorm:"type:text"`                      // Display name.
	Password string `gorm:"type:text;not null"`             // Bcrypt password hash.

	Admin  bool `gorm:"not null;default:false"` // Administrator role.
	Author bool `gorm:"not null;default:false"` // Author role (may publish articles).

	Photo datatypes.JSON `gorm:"type:text"` // Profile photo payload (name, mime, base64).

	Articles []Article `gorm:"foreignKey:AuthorID"` // Authored articles.
	Comments []Comment `gorm:"foreignKey:AuthorID"` // Authored comments.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// DisplayName returns the name shown for the user in chat and article bylines.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Name
}

// Privileged reports whether the user holds the administrator or author role.
func (u *User) Privileged() bool {
	return u != nil && (u.Admin || u.Author)
}
