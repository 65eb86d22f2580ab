package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type RedisStoreSuite struct {
	suite.Suite
	mini  *miniredis.Miniredis
	store *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupTest() {
	mini, err := miniredis.Run()
	s.Require().NoError(err)
	s.mini = mini
	s.store = NewRedis(redis.NewClient(&redis.Options{Addr: mini.Addr()}))
}

func (s *RedisStoreSuite) TearDownTest() {
	s.mini.Close()
}

func (s *RedisStoreSuite) sample(value string) SecurityToken {
	now := time.Now().UTC().Truncate(time.Second)
	return SecurityToken{
		Value:     value,
		Type:      TypeMfa,
		Username:  "JSMITH",
		CreatedAt: now,
		ExpiresAt: now.Add(20 * time.Minute),
	}
}

func (s *RedisStoreSuite) TestReplaceRoundTrip() {
	ctx := context.Background()
	original := s.sample("abc-123")
	s.Require().NoError(s.store.Replace(ctx, original))

	found, err := s.store.Find(ctx, TypeMfa, "abc-123")
	s.Require().NoError(err)
	s.Equal(original.Username, found.Username)
	s.True(original.ExpiresAt.Equal(found.ExpiresAt))
}

func (s *RedisStoreSuite) TestReplaceInvalidatesPrevious() {
	ctx := context.Background()
	s.Require().NoError(s.store.Replace(ctx, s.sample("first")))
	s.Require().NoError(s.store.Replace(ctx, s.sample("second")))

	_, err := s.store.Find(ctx, TypeMfa, "first")
	s.ErrorIs(err, ErrNotFound)

	_, err = s.store.Find(ctx, TypeMfa, "second")
	s.NoError(err)
}

func (s *RedisStoreSuite) TestConsumeIsOneShot() {
	ctx := context.Background()
	s.Require().NoError(s.store.Replace(ctx, s.sample("one-shot")))

	t, err := s.store.Consume(ctx, TypeMfa, "one-shot")
	s.Require().NoError(err)
	s.Equal("JSMITH", t.Username)

	_, err = s.store.Consume(ctx, TypeMfa, "one-shot")
	s.ErrorIs(err, ErrNotFound)
}

func (s *RedisStoreSuite) TestConsumeClearsOwnerKey() {
	ctx := context.Background()
	s.Require().NoError(s.store.Replace(ctx, s.sample("tracked")))

	_, err := s.store.Consume(ctx, TypeMfa, "tracked")
	s.Require().NoError(err)

	s.False(s.mini.Exists("token:owner:JSMITH:MFA"))
}

func (s *RedisStoreSuite) TestDeleteIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.store.Replace(ctx, s.sample("gone")))
	s.NoError(s.store.Delete(ctx, TypeMfa, "gone"))
	s.NoError(s.store.Delete(ctx, TypeMfa, "gone"))
}

func (s *RedisStoreSuite) TestDeleteForUserRemovesBothKeys() {
	ctx := context.Background()
	s.Require().NoError(s.store.Replace(ctx, s.sample("live")))

	s.Require().NoError(s.store.DeleteForUser(ctx, "JSMITH", TypeMfa))

	_, err := s.store.Find(ctx, TypeMfa, "live")
	s.ErrorIs(err, ErrNotFound)
	s.False(s.mini.Exists("token:owner:JSMITH:MFA"))

	s.NoError(s.store.DeleteForUser(ctx, "JSMITH", TypeMfa))
}

func (s *RedisStoreSuite) TestExpiredTokenStillFoundWithinGrace() {
	ctx := context.Background()
	t := s.sample("stale")
	t.ExpiresAt = time.Now().Add(time.Minute)
	s.Require().NoError(s.store.Replace(ctx, t))

	// Past expiry but inside the grace window the record must survive so
	// callers can distinguish expired from unknown.
	s.mini.FastForward(5 * time.Minute)

	found, err := s.store.Find(ctx, TypeMfa, "stale")
	s.Require().NoError(err)
	s.True(found.Expired(time.Now().Add(5 * time.Minute)))
}
