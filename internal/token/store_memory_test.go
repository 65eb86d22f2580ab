package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) sample(value string) SecurityToken {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	return SecurityToken{
		Value:     value,
		Type:      TypeReset,
		Username:  "JSMITH",
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

func (s *InMemoryStoreSuite) TestReplaceInvalidatesPrevious() {
	ctx := context.Background()

	s.Require().NoError(s.store.Replace(ctx, s.sample("first")))
	s.Require().NoError(s.store.Replace(ctx, s.sample("second")))

	_, err := s.store.Find(ctx, TypeReset, "first")
	s.ErrorIs(err, ErrNotFound)

	t, err := s.store.Find(ctx, TypeReset, "second")
	s.NoError(err)
	s.Equal("JSMITH", t.Username)
}

func (s *InMemoryStoreSuite) TestReplaceKeepsOtherTypes() {
	ctx := context.Background()

	reset := s.sample("reset-token")
	mfa := s.sample("123456")
	mfa.Type = TypeMfaCode

	s.Require().NoError(s.store.Replace(ctx, reset))
	s.Require().NoError(s.store.Replace(ctx, mfa))

	_, err := s.store.Find(ctx, TypeReset, "reset-token")
	s.NoError(err)
	_, err = s.store.Find(ctx, TypeMfaCode, "123456")
	s.NoError(err)
}

func (s *InMemoryStoreSuite) TestConsumeRemoves() {
	ctx := context.Background()
	s.Require().NoError(s.store.Replace(ctx, s.sample("one-shot")))

	t, err := s.store.Consume(ctx, TypeReset, "one-shot")
	s.NoError(err)
	s.Equal("JSMITH", t.Username)

	_, err = s.store.Consume(ctx, TypeReset, "one-shot")
	s.ErrorIs(err, ErrNotFound)
}

func (s *InMemoryStoreSuite) TestConcurrentConsumeExactlyOnce() {
	ctx := context.Background()
	s.Require().NoError(s.store.Replace(ctx, s.sample("contested")))

	const goroutines = 32
	var wg sync.WaitGroup
	results := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Consume(ctx, TypeReset, "contested")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var winners, losers int
	for err := range results {
		if err == nil {
			winners++
		} else {
			s.ErrorIs(err, ErrNotFound)
			losers++
		}
	}
	s.Equal(1, winners)
	s.Equal(goroutines-1, losers)
}

func (s *InMemoryStoreSuite) TestDeleteForUserRemovesLiveToken() {
	ctx := context.Background()

	s.Require().NoError(s.store.Replace(ctx, s.sample("live")))
	s.Require().NoError(s.store.DeleteForUser(ctx, "JSMITH", TypeReset))

	_, err := s.store.Find(ctx, TypeReset, "live")
	s.ErrorIs(err, ErrNotFound)

	// No live token for the user is not an error.
	s.NoError(s.store.DeleteForUser(ctx, "JSMITH", TypeReset))
}

func (s *InMemoryStoreSuite) TestDeleteIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.store.Replace(ctx, s.sample("gone")))
	s.NoError(s.store.Delete(ctx, TypeReset, "gone"))
	s.NoError(s.store.Delete(ctx, TypeReset, "gone"))
}
