package storage

import (
	"sync"
	"time"

	"github.com/maruel/ksid"
)

// Session is an issued login.
type Session struct {
	ID        ksid.ID
	Username  string
	ExpiresAt time.Time
}

// SessionService tracks issued sessions in memory so logouts revoke tokens.
// Sessions do not survive a restart; tokens issued before are rejected.
type SessionService struct {
	mu       sync.Mutex
	sessions map[ksid.ID]Session
}

// NewSessionService returns an empty SessionService.
func NewSessionService() *SessionService {
	return &SessionService{sessions: make(map[ksid.ID]Session)}
}

// Create registers a new session for username valid for ttl.
func (s *SessionService) Create(username string, ttl time.Duration) Session {
	sess := Session{ID: ksid.NewID(), Username: username, ExpiresAt: time.Now().Add(ttl)}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess
}

// IsValid reports whether id is a live session for username.
func (s *SessionService) IsValid(id ksid.ID, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Username != username {
		return false
	}
	if time.Now().After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return false
	}
	return true
}

// Revoke ends a session. Unknown IDs are ignored.
func (s *SessionService) Revoke(id ksid.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// CleanupExpired drops expired sessions and returns how many were removed.
func (s *SessionService) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	n := 0
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}
