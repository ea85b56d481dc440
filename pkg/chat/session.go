package chat

import (
	"context"
	"errors"
	"sync"
)

// SessionIssuer hands out conversation session ids. sdk.Client implements it.
type SessionIssuer interface {
	IssueSession(ctx context.Context, source string) (string, error)
}

// SessionStore maps a conversation key to its session id
type SessionStore interface {
	Get(key string) (string, bool)
	Set(key, sessionID string)
	Delete(key string)
}

// MemorySessionStore is an in-memory SessionStore
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]string // conversation key -> session id
}

// NewMemorySessionStore initializes a new MemorySessionStore
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]string)}
}

// Get retrieves the session id for a conversation key
func (s *MemorySessionStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sessions[key]
	return v, ok
}

// Set associates a session id with a conversation key
func (s *MemorySessionStore) Set(key, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = sessionID
}

// Delete removes the session id associated with a conversation key
func (s *MemorySessionStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// ensureSession returns the conversation's session id, issuing one on first use. Failures
// are not retried here; the user re-sending is the retry.
func (c *Conversation) ensureSession(ctx context.Context) (string, error) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if id, ok := c.sessions.Get(c.key); ok && id != "" {
		return id, nil
	}

	id, err := c.issuer.IssueSession(ctx, c.profile.Source)
	if err != nil {
		return "", &SessionInitError{Err: err}
	}
	if id == "" {
		return "", &SessionInitError{Err: errors.New("empty session id")}
	}

	c.sessions.Set(c.key, id)
	return id, nil
}
