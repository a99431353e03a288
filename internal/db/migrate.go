package db

import (
	"fmt"
	"time"

	"github.com/goblog-dev/goblog/internal/models"
	"github.com/goblog-dev/goblog/internal/security"
	"gorm.io/gorm"
)

// Migrate runs schema migrations and seeds the initial data set.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Article{},
		&models.Comment{},
		&models.Tag{},
		&models.Message{},
		&models.LoginAudit{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return seedInitialData(conn)
}

// seedInitialData creates a first admin account and a sample article when the
// users table is empty.
func seedInitialData(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.User{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: count users: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	hash, errHash := security.HashPassword("admin")
	if errHash != nil {
		return fmt.Errorf("db: seed admin: %w", errHash)
	}

	now := time.Now().UTC()
	return conn.Transaction(func(tx *gorm.DB) error {
		admin := models.User{
			Username: "admin",
			Name:     "Admin",
			Password: hash,
			Admin:    true,
			Author:   true,
		}
		if errCreate := tx.Create(&admin).Error; errCreate != nil {
			return fmt.Errorf("db: seed admin: %w", errCreate)
		}
		article := models.Article{
			Title:       "First Article",
			Body:        "Sample content",
			AuthorID:    admin.ID,
			PublishedAt: now,
		}
		if errCreate := tx.Create(&article).Error; errCreate != nil {
			return fmt.Errorf("db: seed article: %w", errCreate)
		}
		return nil
	})
}
