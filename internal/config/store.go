package config

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfeidau/authsession/internal/tokenstore"
)

// Scope returns the configured store scope, or one derived from the server.
func (p Profile) Scope() string {
	if p.Store.Scope != "" {
		return p.Store.Scope
	}
	return tokenstore.ScopeFromOrigin(p.ServerURL)
}

// OpenStore builds the token store selected by the profile. The returned
// close function releases backend connections.
func (p Profile) OpenStore() (tokenstore.Store, func() error, error) {
	noop := func() error { return nil }

	switch p.Store.Backend {
	case BackendFile, "":
		store, err := tokenstore.NewFileStore(p.Store.Dir, p.Scope())
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case BackendMemory:
		return tokenstore.NewMemoryStore(), noop, nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: p.Store.RedisAddr})
		prefix := p.Store.RedisPrefix
		if prefix == "" {
			return tokenstore.NewRedisStore(client, p.Scope()), client.Close, nil
		}
		return tokenstore.NewRedisStoreWithPrefix(client, prefix, p.Scope()), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown store backend %q", ErrInvalidProfile, p.Store.Backend)
	}
}
