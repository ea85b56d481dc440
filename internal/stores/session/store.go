package session

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SqlStore keeps conversation session ids in MySQL so long-lived clients resume their
// sessions across restarts. It satisfies chat.SessionStore.
type SqlStore struct {
	db *gorm.DB
}

// NewSqlStore opens the database and migrates the session table
func NewSqlStore(dsn string) (*SqlStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return NewSqlStoreFromDB(db)
}

// NewSqlStoreFromDB wraps an existing connection and migrates the session table
func NewSqlStoreFromDB(db *gorm.DB) (*SqlStore, error) {
	if err := db.AutoMigrate(&ConversationSession{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	return &SqlStore{db: db}, nil
}

// Get retrieves the session id for a conversation key
func (s *SqlStore) Get(key string) (string, bool) {
	var session ConversationSession
	result := s.db.Where("conversation_key = ?", key).First(&session)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Printf("[SQL-STORE]: error retrieving session for key %s: %v", key, result.Error)
		}
		return "", false
	}
	return session.SessionID, true
}

// Set associates a session id with a conversation key, replacing any previous one
func (s *SqlStore) Set(key, sessionID string) {
	session := ConversationSession{ConversationKey: key, SessionID: sessionID}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_id", "updated_at"}),
	}).Create(&session)

	if result.Error != nil {
		log.Printf("[SQL-STORE]: error saving session for key %s: %v", key, result.Error)
	}
}

// Delete removes the session id associated with a conversation key
func (s *SqlStore) Delete(key string) {
	result := s.db.Where("conversation_key = ?", key).Delete(&ConversationSession{})
	if result.Error != nil {
		log.Printf("[SQL-STORE]: error deleting session for key %s: %v", key, result.Error)
	}
}

// Close closes the database connection
func (s *SqlStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	return sqlDB.Close()
}
