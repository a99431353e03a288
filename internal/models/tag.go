package models

// Tag represents a label attached to articles.
type Tag struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:text;not null;uniqueIndex"` // Unique tag name.

	Articles []Article `gorm:"many2many:article_tags"` // Tagged articles.
}
