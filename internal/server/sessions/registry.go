// Package sessions tracks which connection is currently logged in as which
// user. At most one session exists per username.
package sessions

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the registry's record of an authenticated connection.
type Session struct {
	Username  string
	ConnID    uuid.UUID
	CreatedAt time.Time
}

// Registry is safe for concurrent use. All three operations are short
// critical sections over one map.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session), now: time.Now}
}

// TryAcquire registers connID as the owner of username if nobody holds it.
// It reports false, changing nothing, when a session already exists, even if
// connID itself is the owner.
func (r *Registry) TryAcquire(username string, connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[username]; ok {
		return false
	}
	r.sessions[username] = Session{Username: username, ConnID: connID, CreatedAt: r.now()}
	return true
}

// IsOwner reports whether connID currently holds the session for username.
func (r *Registry) IsOwner(username string, connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[username]
	return ok && s.ConnID == connID
}

// Release drops the session only when connID owns it. It reports whether a
// session was removed; calling it again is harmless.
func (r *Registry) Release(username string, connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[username]
	if !ok || s.ConnID != connID {
		return false
	}
	delete(r.sessions, username)
	return true
}

// Get returns the live session for username, if any.
func (r *Registry) Get(username string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[username]
	return s, ok
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
