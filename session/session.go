// Package session owns the process-wide credential: who is logged in and
// the token proving it. The transport reads it on every request and the
// guard reads it to gate protected views; only login, signup, and logout
// write it.
package session

import "sync"

// Session is the injected credential context. Zero value is a logged-out
// session. Safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	token    string
	username string
}

func New() *Session {
	return &Session{}
}

// Set stores the credential after a successful login or signup.
func (s *Session) Set(token, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.username = username
}

// Clear wipes the credential on logout.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.username = ""
}

// Token returns the stored token, empty when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Username returns the logged-in user's name, empty when logged out.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Authenticated reports whether a credential is present. Presence is the
// only test; validity is the server's call.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}
