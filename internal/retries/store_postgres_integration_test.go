//go:build integration

package retries

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"signon/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, &PostgresStoreSuite{pg: containers.NewPostgresContainer(t)})
}

func (s *PostgresStoreSuite) SetupTest() {
	s.pg.Truncate(s.T(), "user_retries")
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) TestIncrementAndGet() {
	ctx := context.Background()

	count, err := s.store.IncrementAndGet(ctx, "jsmith", ScopeLogin)
	s.Require().NoError(err)
	s.Equal(1, count)

	count, err = s.store.IncrementAndGet(ctx, "jsmith", ScopeLogin)
	s.Require().NoError(err)
	s.Equal(2, count)

	count, err = s.store.IncrementAndGet(ctx, "jsmith", ScopeMfaEmail)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestResetClearsScopeOnly() {
	ctx := context.Background()

	_, err := s.store.IncrementAndGet(ctx, "jsmith", ScopeLogin)
	s.Require().NoError(err)
	_, err = s.store.IncrementAndGet(ctx, "jsmith", ScopeMfaEmail)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Reset(ctx, "jsmith", ScopeLogin))

	count, err := s.store.IncrementAndGet(ctx, "jsmith", ScopeLogin)
	s.Require().NoError(err)
	s.Equal(1, count)

	count, err = s.store.IncrementAndGet(ctx, "jsmith", ScopeMfaEmail)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *PostgresStoreSuite) TestConcurrentIncrementsAreDistinct() {
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	counts := make(chan int, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count, err := s.store.IncrementAndGet(ctx, "jsmith", ScopeLogin)
			s.NoError(err)
			counts <- count
		}()
	}
	wg.Wait()
	close(counts)

	seen := make(map[int]bool)
	for count := range counts {
		s.False(seen[count], "count %d returned twice", count)
		seen[count] = true
	}
	s.Len(seen, attempts)
}
