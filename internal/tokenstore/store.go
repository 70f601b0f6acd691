// Package tokenstore persists the raw access token string.
//
// Stores are plain key-value pass-throughs scoped to one application origin.
// They do no validation of the values they hold.
package tokenstore

import (
	"context"
	"net/url"
	"strings"
)

// Store is scoped key-value persistence for credential strings.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes value for key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// ScopeFromOrigin derives a storage scope from a server URL so that tokens
// issued by different servers never share a slot.
func ScopeFromOrigin(origin string) string {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}

	host = strings.ToLower(host)

	var sb strings.Builder
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}

	if sb.Len() == 0 {
		return "default"
	}
	return sb.String()
}
