package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/goblog-dev/goblog/internal/models"
	"gorm.io/gorm"
)

// Deletion failures surfaced to callers.
var (
	// ErrMessageNotFound indicates the message does not exist.
	ErrMessageNotFound = errors.New("chat: message not found")
	// ErrNotMessageOwner indicates the requester may not delete the message.
	ErrNotMessageOwner = errors.New("chat: not message owner")
)

// Store is the persistence collaborator of the Registry.
type Store interface {
	// SaveMessage persists a message inside a single transaction and assigns
	// its identifier.
	SaveMessage(ctx context.Context, msg *models.Message) error
	// FindRecipient resolves a username to a user, returning
	// ErrUnknownRecipient when no such user exists.
	FindRecipient(ctx context.Context, username string) (*models.User, error)
	// ListAll returns every message, oldest first when asked, else newest first.
	ListAll(ctx context.Context, oldestFirst bool) ([]models.Message, error)
	// ListFor returns messages sent or received by the user, newest first.
	ListFor(ctx context.Context, userID uint64) ([]models.Message, error)
	// HistoryFor returns the user's full conversation, oldest first.
	HistoryFor(ctx context.Context, username string) ([]models.Message, error)
}

// GormStore persists chat messages via GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// SaveMessage inserts the message in its own transaction.
func (s *GormStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("chat store: not initialized")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Omit("Sender", "Recipient").Create(msg).Error; errCreate != nil {
			return fmt.Errorf("chat store: insert: %w", errCreate)
		}
		return nil
	})
}

// FindRecipient resolves a recipient username.
func (s *GormStore) FindRecipient(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	errFind := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownRecipient
		}
		return nil, fmt.Errorf("chat store: find recipient: %w", errFind)
	}
	return &user, nil
}

// ListAll returns every message with sender and recipient preloaded.
func (s *GormStore) ListAll(ctx context.Context, oldestFirst bool) ([]models.Message, error) {
	order := "sent_at DESC"
	if oldestFirst {
		order = "sent_at ASC"
	}
	var rows []models.Message
	errFind := s.db.WithContext(ctx).
		Preload("Sender").Preload("Recipient").
		Order(order).Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("chat store: list: %w", errFind)
	}
	return rows, nil
}

// ListFor returns messages where the user is sender or recipient, newest first.
func (s *GormStore) ListFor(ctx context.Context, userID uint64) ([]models.Message, error) {
	var rows []models.Message
	errFind := s.db.WithContext(ctx).
		Preload("Sender").Preload("Recipient").
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("sent_at DESC").Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("chat store: list for user: %w", errFind)
	}
	return rows, nil
}

// HistoryFor returns the full conversation of the named user, oldest first.
func (s *GormStore) HistoryFor(ctx context.Context, username string) ([]models.Message, error) {
	var rows []models.Message
	errFind := s.db.WithContext(ctx).
		Preload("Sender").Preload("Recipient").
		Joins("LEFT JOIN users sender ON sender.id = messages.sender_id").
		Joins("LEFT JOIN users recipient ON recipient.id = messages.recipient_id").
		Where("sender.username = ? OR recipient.username = ?", username, username).
		Order("messages.sent_at ASC").Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("chat store: history: %w", errFind)
	}
	return rows, nil
}

// DeleteMessage removes a message when the requester sent it or is an admin.
func (s *GormStore) DeleteMessage(ctx context.Context, id uint64, requester *models.User) error {
	if requester == nil {
		return ErrNotMessageOwner
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg models.Message
		if errFind := tx.First(&msg, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrMessageNotFound
			}
			return fmt.Errorf("chat store: find message: %w", errFind)
		}
		owner := msg.SenderID != nil && *msg.SenderID == requester.ID
		if !owner && !requester.Admin {
			return ErrNotMessageOwner
		}
		if errDelete := tx.Delete(&models.Message{}, id).Error; errDelete != nil {
			return fmt.Errorf("chat store: delete message: %w", errDelete)
		}
		return nil
	})
}

// ListSenders returns the users who have sent at least one message.
func (s *GormStore) ListSenders(ctx context.Context) ([]models.User, error) {
	var rows []models.User
	errFind := s.db.WithContext(ctx).
		Where("EXISTS (SELECT 1 FROM messages m WHERE m.sender_id = users.id)").
		Order("username ASC").Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("chat store: list senders: %w", errFind)
	}
	return rows, nil
}
