package chat

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ethanbaker/coach/pkg/sdk"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// registryEntry is a single issued session
type registryEntry struct {
	session  sdk.Session
	lastSeen time.Time
}

// Registry keeps the sessions issued by the development server in memory
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*registryEntry
	now      func() time.Time
}

// NewRegistry creates an empty session registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*registryEntry),
		now:      time.Now,
	}
}

// Create issues a new session for the given source tag
func (r *Registry) Create(source string) sdk.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	session := sdk.Session{
		ID:        uuid.NewString(),
		Source:    source,
		CreatedAt: now,
	}
	r.sessions[session.ID] = &registryEntry{session: session, lastSeen: now}

	return session
}

// Touch marks a session as used and reports whether it exists
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[id]
	if !ok {
		return false
	}
	entry.lastSeen = r.now()
	return true
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Prune removes sessions that have not been used within maxIdle and returns how many
// were removed
func (r *Registry) Prune(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for id, entry := range r.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}

	return removed
}

// StartPruning schedules Prune on the given cron spec. The caller stops the returned cron.
func (r *Registry) StartPruning(spec string, maxIdle time.Duration) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(spec, func() {
		if n := r.Prune(maxIdle); n > 0 {
			log.Printf("[API]: Pruned %d idle chat sessions", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}

	c.Start()
	return c, nil
}
