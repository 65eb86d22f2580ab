package token

import (
	"context"
	"sync"
)

// InMemoryStore keeps tokens in maps guarded by a single mutex, which gives
// every operation the atomicity the Store contract demands. Tests construct a
// fresh one per case.
type InMemoryStore struct {
	mu     sync.Mutex
	tokens map[string]SecurityToken // (type, value) -> token
	owners map[string]string        // (username, type) -> live value
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tokens: make(map[string]SecurityToken),
		owners: make(map[string]string),
	}
}

func tokenKey(tokenType Type, value string) string    { return string(tokenType) + ":" + value }
func ownerKey(username string, tokenType Type) string { return username + ":" + string(tokenType) }

func (s *InMemoryStore) Replace(_ context.Context, t SecurityToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.owners[ownerKey(t.Username, t.Type)]; ok {
		delete(s.tokens, tokenKey(t.Type, old))
	}
	s.tokens[tokenKey(t.Type, t.Value)] = t
	s.owners[ownerKey(t.Username, t.Type)] = t.Value
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, tokenType Type, value string) (SecurityToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenKey(tokenType, value)]
	if !ok {
		return SecurityToken{}, ErrNotFound
	}
	return t, nil
}

func (s *InMemoryStore) Consume(_ context.Context, tokenType Type, value string) (SecurityToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tokenKey(tokenType, value)
	t, ok := s.tokens[key]
	if !ok {
		return SecurityToken{}, ErrNotFound
	}
	delete(s.tokens, key)
	if s.owners[ownerKey(t.Username, t.Type)] == value {
		delete(s.owners, ownerKey(t.Username, t.Type))
	}
	return t, nil
}

func (s *InMemoryStore) DeleteForUser(_ context.Context, username string, tokenType Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value, ok := s.owners[ownerKey(username, tokenType)]; ok {
		delete(s.tokens, tokenKey(tokenType, value))
		delete(s.owners, ownerKey(username, tokenType))
	}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, tokenType Type, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tokenKey(tokenType, value)
	if t, ok := s.tokens[key]; ok {
		delete(s.tokens, key)
		if s.owners[ownerKey(t.Username, t.Type)] == value {
			delete(s.owners, ownerKey(t.Username, t.Type))
		}
	}
	return nil
}
