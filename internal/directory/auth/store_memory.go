package auth

import (
	"context"
	"strings"
	"sync"

	"signon/internal/directory"
)

// InMemoryUserStore keeps accounts in a map. Tests construct a fresh one per
// case; it intentionally favors clarity over performance.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]directory.AuthUser
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]directory.AuthUser)}
}

func (s *InMemoryUserStore) Save(_ context.Context, user directory.AuthUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToUpper(user.Username)] = user
	return nil
}

func (s *InMemoryUserStore) FindByUsername(_ context.Context, username string) (directory.AuthUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[strings.ToUpper(username)]; ok {
		return user, nil
	}
	return directory.AuthUser{}, ErrNotFound
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) ([]directory.AuthUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []directory.AuthUser
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) && user.EmailVerified {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *InMemoryUserStore) SetLocked(_ context.Context, username string, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(username)
	user, ok := s.users[key]
	if !ok {
		return ErrNotFound
	}
	user.Locked = locked
	s.users[key] = user
	return nil
}

func (s *InMemoryUserStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, strings.ToUpper(username))
	return nil
}
