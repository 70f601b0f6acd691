package tokenstore

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis connects to REDIS_ADDR, skipping when it is unset or unreachable.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis tests")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skipf("redis not available at %s: %v", addr, err)
	}

	t.Cleanup(func() { client.Close() })

	return client
}

func TestRedisStore_RoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	store := NewRedisStoreWithPrefix(client, "authsession-test:", t.Name())
	t.Cleanup(func() { _ = store.Remove(ctx, "jwt") })

	_, ok, err := store.Get(ctx, "jwt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "jwt", "a.b.c"))

	value, ok, err := store.Get(ctx, "jwt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a.b.c", value)

	require.NoError(t, store.Remove(ctx, "jwt"))
	require.NoError(t, store.Remove(ctx, "jwt"))

	_, ok, err = store.Get(ctx, "jwt")
	require.NoError(t, err)
	assert.False(t, ok)
}
