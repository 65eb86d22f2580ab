package retries

import (
	"context"
	"strings"
	"sync"
)

// InMemoryStore keeps retry counts in a mutex-guarded map. Suitable for tests
// and single-instance deployments.
type InMemoryStore struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{counts: make(map[string]int)}
}

func counterKey(username string, scope Scope) string {
	return strings.ToUpper(username) + ":" + string(scope)
}

func (s *InMemoryStore) IncrementAndGet(_ context.Context, username string, scope Scope) (int, error) {
	key := counterKey(username, scope)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}

func (s *InMemoryStore) Reset(_ context.Context, username string, scope Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, counterKey(username, scope))
	return nil
}
