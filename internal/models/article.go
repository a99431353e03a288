package models

import "time"

// Article represents a published blog post.
type Article struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Title string `gorm:"type:text;not null"` // Article title.
	Body  string `gorm:"type:text;not null"` // Article body.

	AuthorID uint64 `gorm:"not null;index"`      // Authoring user ID.
	Author   *User  `gorm:"foreignKey:AuthorID"` // Authoring user.

	Comments []Comment `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE"` // Attached comments.
	Tags     []Tag     `gorm:"many2many:article_tags"`                           // Attached tags.

	PublishedAt time.Time `gorm:"not null;index"`          // Publication timestamp.
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
