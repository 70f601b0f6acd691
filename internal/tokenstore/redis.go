package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps values in Redis under "<prefix><scope>:<key>".
// Values carry no TTL; expiry is decided from the token claims, not by the store.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis backed store for scope.
func NewRedisStore(client redis.UniversalClient, scope string) *RedisStore {
	return NewRedisStoreWithPrefix(client, "authsession:", scope)
}

// NewRedisStoreWithPrefix creates a Redis backed store with a custom key prefix.
func NewRedisStoreWithPrefix(client redis.UniversalClient, prefix, scope string) *RedisStore {
	if scope == "" {
		scope = "default"
	}
	return &RedisStore{
		client: client,
		prefix: prefix + scope + ":",
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
