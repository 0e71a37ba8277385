package fleetapi

import (
	"errors"
	"sync"
)

// ErrSessionClosed is returned for requests made through a session after logout.
var ErrSessionClosed = errors.New("fleetapi: session closed")

// Session carries the API token for one login. It is created by Client.Login (or
// NewSession for a pre-issued token) and torn down with Close on logout.
type Session struct {
	mu     sync.RWMutex
	token  string
	closed bool
}

// NewSession wraps an already issued token.
func NewSession(token string) *Session {
	return &Session{token: token}
}

// Token returns the session token, or ErrSessionClosed after Close.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	return s.token, nil
}

// Close forgets the token. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.closed = true
}
