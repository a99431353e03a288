package models

import "time"

// Comment represents a reader comment on an article.
type Comment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Body string `gorm:"type:text;not null"` // Comment text.

	AuthorID uint64 `gorm:"not null;index"`      // Commenting user ID.
	Author   *User  `gorm:"foreignKey:AuthorID"` // Commenting user.

	ArticleID uint64   `gorm:"not null;index"`       // Commented article ID.
	Article   *Article `gorm:"foreignKey:ArticleID"` // Commented article.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
