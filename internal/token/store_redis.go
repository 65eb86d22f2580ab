package token

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists tokens in Redis. Each token lives under a value key,
// with an owner key tracking the single live token per (username, type).
// Keys carry the token expiry plus a grace window so Check can still report
// "expired" rather than "not found" shortly after expiry.
type RedisStore struct {
	client *redis.Client
}

const redisExpiryGrace = 24 * time.Hour

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisTokenKey(tokenType Type, value string) string {
	return "token:" + string(tokenType) + ":" + value
}

func redisOwnerKey(username string, tokenType Type) string {
	return "token:owner:" + username + ":" + string(tokenType)
}

type redisRecord struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *RedisStore) Replace(ctx context.Context, t SecurityToken) error {
	payload, err := json.Marshal(redisRecord{
		Username:  t.Username,
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
	})
	if err != nil {
		return err
	}

	ownerKey := redisOwnerKey(t.Username, t.Type)
	ttl := time.Until(t.ExpiresAt) + redisExpiryGrace

	// Watch the owner key so two concurrent Replace calls cannot both leave
	// a live token behind.
	const maxRetries = 4
	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			previous, err := tx.Get(ctx, ownerKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if previous != "" {
					pipe.Del(ctx, redisTokenKey(t.Type, previous))
				}
				pipe.Set(ctx, redisTokenKey(t.Type, t.Value), payload, ttl)
				pipe.Set(ctx, ownerKey, t.Value, ttl)
				return nil
			})
			return err
		}, ownerKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

func (s *RedisStore) Find(ctx context.Context, tokenType Type, value string) (SecurityToken, error) {
	data, err := s.client.Get(ctx, redisTokenKey(tokenType, value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SecurityToken{}, ErrNotFound
		}
		return SecurityToken{}, err
	}
	return decodeToken(tokenType, value, data)
}

func (s *RedisStore) Consume(ctx context.Context, tokenType Type, value string) (SecurityToken, error) {
	// GETDEL makes consumption exactly-once: a concurrent consumer of the
	// same value observes redis.Nil.
	data, err := s.client.GetDel(ctx, redisTokenKey(tokenType, value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SecurityToken{}, ErrNotFound
		}
		return SecurityToken{}, err
	}
	t, err := decodeToken(tokenType, value, data)
	if err != nil {
		return SecurityToken{}, err
	}
	s.client.Del(ctx, redisOwnerKey(t.Username, tokenType))
	return t, nil
}

func (s *RedisStore) Delete(ctx context.Context, tokenType Type, value string) error {
	data, err := s.client.GetDel(ctx, redisTokenKey(tokenType, value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	var record redisRecord
	if err := json.Unmarshal(data, &record); err == nil {
		s.client.Del(ctx, redisOwnerKey(record.Username, tokenType))
	}
	return nil
}

func (s *RedisStore) DeleteForUser(ctx context.Context, username string, tokenType Type) error {
	value, err := s.client.GetDel(ctx, redisOwnerKey(username, tokenType)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	return s.client.Del(ctx, redisTokenKey(tokenType, value)).Err()
}

func decodeToken(tokenType Type, value string, data []byte) (SecurityToken, error) {
	var record redisRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return SecurityToken{}, err
	}
	return SecurityToken{
		Value:     value,
		Type:      tokenType,
		Username:  record.Username,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}
