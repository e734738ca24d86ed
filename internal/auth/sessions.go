package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/BKHilton/Ember/pkg/domain"
)

// tokenBytes is the entropy of a session token before hex encoding.
const tokenBytes = 32

// SessionStore maps opaque tokens to authenticated users. It lives only in
// process memory: a restart signs everyone out.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.SessionInfo
	now      func() time.Time
}

// NewSessionStore returns an empty store using now for session timestamps.
func NewSessionStore(now func() time.Time) *SessionStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SessionStore{sessions: make(map[string]domain.SessionInfo), now: now}
}

// Create issues a new token for user.
func (s *SessionStore) Create(user domain.UserAccount) (domain.SessionInfo, error) {
	token, err := newToken()
	if err != nil {
		return domain.SessionInfo{}, err
	}
	info := domain.SessionInfo{Token: token, User: user, ChurchID: user.ChurchID, CreatedAt: s.now()}
	s.mu.Lock()
	s.sessions[token] = info
	s.mu.Unlock()
	return info, nil
}

// Lookup returns the session for token.
func (s *SessionStore) Lookup(token string) (domain.SessionInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.sessions[token]
	return info, ok
}

// Revoke removes token and reports whether it existed.
func (s *SessionStore) Revoke(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[token]
	delete(s.sessions, token)
	return ok
}

// RevokeUser removes every session of userID and returns how many were removed.
func (s *SessionStore) RevokeUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for token, info := range s.sessions {
		if info.User.ID == userID {
			delete(s.sessions, token)
			n++
		}
	}
	return n
}

// Refresh replaces the cached user on every session of user.ID.
func (s *SessionStore) Refresh(user domain.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, info := range s.sessions {
		if info.User.ID == user.ID {
			info.User = user
			s.sessions[token] = info
		}
	}
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Clear drops all sessions.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]domain.SessionInfo)
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
