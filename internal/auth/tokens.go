package auth

import (
	"sync"

	"github.com/matheus3301/souk/internal/store"
)

// Backend persists credentials between daemon runs. *store.DB implements it.
type Backend interface {
	LoadCredentials() (store.Credentials, error)
	SaveCredentials(store.Credentials) error
	ClearCredentials() error
}

// Tokens is a snapshot of the session credentials.
type Tokens = store.Credentials

// Store wraps the persisted access/refresh pair with an in-memory copy.
type Store struct {
	mu      sync.RWMutex
	tokens  Tokens
	backend Backend
}

// NewStore loads the persisted credentials, if any. A nil backend keeps tokens in memory only.
func NewStore(backend Backend) (*Store, error) {
	s := &Store{backend: backend}
	if backend == nil {
		return s, nil
	}
	t, err := backend.LoadCredentials()
	if err != nil {
		return nil, err
	}
	s.tokens = t
	return s, nil
}

// Tokens returns the current pair.
func (s *Store) Tokens() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// Access returns the current access token.
func (s *Store) Access() string {
	return s.Tokens().Access
}

// Refresh returns the current refresh token.
func (s *Store) Refresh() string {
	return s.Tokens().Refresh
}

// HasSession reports whether an access token is held.
func (s *Store) HasSession() bool {
	return s.Access() != ""
}

// Set replaces both tokens.
func (s *Store) Set(access, refresh string) error {
	return s.save(Tokens{Access: access, Refresh: refresh})
}

// SetAccess replaces the access token and keeps the refresh token. Used after a
// refresh call that did not rotate the refresh token.
func (s *Store) SetAccess(access string) error {
	s.mu.Lock()
	t := Tokens{Access: access, Refresh: s.tokens.Refresh}
	s.mu.Unlock()
	return s.save(t)
}

// Clear drops both tokens from memory and storage.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.tokens = Tokens{}
	s.mu.Unlock()
	if s.backend == nil {
		return nil
	}
	return s.backend.ClearCredentials()
}

func (s *Store) save(t Tokens) error {
	s.mu.Lock()
	s.tokens = t
	s.mu.Unlock()
	if s.backend == nil {
		return nil
	}
	return s.backend.SaveCredentials(t)
}
