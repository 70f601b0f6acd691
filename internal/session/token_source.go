package session

import (
	"context"
	"fmt"

	"github.com/wolfeidau/authsession/internal/tokencodec"
	"github.com/wolfeidau/authsession/internal/tokenstore"
	"golang.org/x/oauth2"
)

// storeTokenSource reads the persisted token on every call so that it always
// reflects the latest login or logout.
type storeTokenSource struct {
	store tokenstore.Store
	key   string
}

// NewTokenSource returns an oauth2.TokenSource backed by the token store.
// It returns ErrNoToken when nothing is persisted. Expiry comes from the
// claims; a token that cannot be decoded is returned without an expiry.
func NewTokenSource(store tokenstore.Store, key string) oauth2.TokenSource {
	if key == "" {
		key = DefaultTokenKey
	}
	return &storeTokenSource{store: store, key: key}
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	raw, ok, err := s.store.Get(context.Background(), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	if !ok || raw == "" {
		return nil, ErrNoToken
	}

	tok := &oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
	}

	if claims, err := tokencodec.Decode(raw); err == nil {
		if exp, err := tokencodec.ExpiryInstant(claims); err == nil {
			tok.Expiry = exp
		}
	}

	return tok, nil
}
