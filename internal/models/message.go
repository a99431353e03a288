package models

import "time"

// Message represents a chat message. A message has either an authenticated
// sender or an anonymous display name, never both, and is immutable once
// persisted. Recipient is set only for directed admin chat; delivery is still
// a broadcast to every connected session.
type Message struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Body string `gorm:"type:text;not null"` // Message text.

	SenderID      *uint64 `gorm:"index"`               // Authenticated sender ID, nil when anonymous.
	Sender        *User   `gorm:"foreignKey:SenderID"` // Authenticated sender.
	AnonymousName string  `gorm:"type:text"`           // Display name for anonymous senders.

	RecipientID *uint64 `gorm:"index"`                  // Directed recipient ID, nil for open chat.
	Recipient   *User   `gorm:"foreignKey:RecipientID"` // Directed recipient.

	SentAt time.Time `gorm:"not null;index"` // Send timestamp.
}

// AuthorName returns the display name of the message sender.
func (m *Message) AuthorName() string {
	if m == nil {
		return ""
	}
	if m.Sender != nil {
		return m.Sender.DisplayName()
	}
	return m.AnonymousName
}
