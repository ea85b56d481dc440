package session

import "time"

// ConversationSession maps a client conversation key to the session issued for it
type ConversationSession struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	ConversationKey string    `gorm:"uniqueIndex;not null;size:191"` // Client-side conversation key
	SessionID       string    `gorm:"not null;size:191"`             // Issued session id
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

// TableName sets the table name for GORM
func (ConversationSession) TableName() string {
	return "conversation_sessions"
}
