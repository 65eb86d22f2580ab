//go:build integration

package token

import (
	"context"
	"testing"
	"time"

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
	s.pg.Truncate(s.T(), "user_tokens")
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) sample(value string) SecurityToken {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return SecurityToken{
		Value:     value,
		Type:      TypeReset,
		Username:  "JSMITH",
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

func (s *PostgresStoreSuite) TestReplaceRoundTrip() {
	ctx := context.Background()
	original := s.sample("round-trip")
	s.Require().NoError(s.store.Replace(ctx, original))

	found, err := s.store.Find(ctx, TypeReset, "round-trip")
	s.Require().NoError(err)
	s.Equal(original.Username, found.Username)
	s.True(original.ExpiresAt.Equal(found.ExpiresAt))
}

func (s *PostgresStoreSuite) TestReplaceInvalidatesPrevious() {
	ctx := context.Background()
	s.Require().NoError(s.store.Replace(ctx, s.sample("first")))
	s.Require().NoError(s.store.Replace(ctx, s.sample("second")))

	_, err := s.store.Find(ctx, TypeReset, "first")
	s.ErrorIs(err, ErrNotFound)

	_, err = s.store.Find(ctx, TypeReset, "second")
	s.NoError(err)
}

func (s *PostgresStoreSuite) TestReplaceKeepsOtherTypes() {
	ctx := context.Background()
	mfa := s.sample("123456")
	mfa.Type = TypeMfaCode

	s.Require().NoError(s.store.Replace(ctx, s.sample("reset-token")))
	s.Require().NoError(s.store.Replace(ctx, mfa))

	_, err := s.store.Find(ctx, TypeReset, "reset-token")
	s.NoError(err)
	_, err = s.store.Find(ctx, TypeMfaCode, "123456")
	s.NoError(err)
}

func (s *PostgresStoreSuite) TestConsumeIsOneShot() {
	ctx := context.Background()
	s.Require().NoError(s.store.Replace(ctx, s.sample("one-shot")))

	t, err := s.store.Consume(ctx, TypeReset, "one-shot")
	s.Require().NoError(err)
	s.Equal("JSMITH", t.Username)

	_, err = s.store.Consume(ctx, TypeReset, "one-shot")
	s.ErrorIs(err, ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeleteForUserRemovesLiveToken() {
	ctx := context.Background()
	s.Require().NoError(s.store.Replace(ctx, s.sample("live")))

	s.Require().NoError(s.store.DeleteForUser(ctx, "JSMITH", TypeReset))

	_, err := s.store.Find(ctx, TypeReset, "live")
	s.ErrorIs(err, ErrNotFound)
	s.NoError(s.store.DeleteForUser(ctx, "JSMITH", TypeReset))
}

func (s *PostgresStoreSuite) TestDeleteExpired() {
	ctx := context.Background()

	stale := s.sample("stale")
	stale.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	s.Require().NoError(s.store.Replace(ctx, stale))

	live := s.sample("live")
	live.Username = "OTHER"
	s.Require().NoError(s.store.Replace(ctx, live))

	removed, err := s.store.DeleteExpired(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), removed)

	_, err = s.store.Find(ctx, TypeReset, "stale")
	s.ErrorIs(err, ErrNotFound)
	_, err = s.store.Find(ctx, TypeReset, "live")
	s.NoError(err)
}
