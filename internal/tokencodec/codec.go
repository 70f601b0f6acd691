// Package tokencodec decodes signed access tokens without verifying them.
//
// Signature verification is the server's job; the client only needs the
// claims to derive the session status and the expiry to decide whether a
// persisted token is still worth resuming.
package tokencodec

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

var (
	// ErrMalformedToken is returned when a token is not a well formed JWT.
	ErrMalformedToken = errors.New("malformed token")

	// ErrMissingExpiry is returned when the claims carry no exp claim.
	ErrMissingExpiry = errors.New("token has no expiry")
)

// Claims are the fields the session core reads from an access token.
type Claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role,omitempty"`
	UID   string `json:"uid,omitempty"`
	Email string `json:"email,omitempty"`
}

// UserID returns the uid claim, falling back to the subject.
func (c *Claims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

var parser = jwt.NewParser()

// Decode parses the claims segment of token. It checks structure only.
func Decode(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	return claims, nil
}

// ExpiryInstant returns the exp claim as a time.
func ExpiryInstant(claims *Claims) (time.Time, error) {
	if claims == nil || claims.ExpiresAt == nil {
		return time.Time{}, ErrMissingExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether the token is expired at now. A token whose expiry
// equals now is expired, as is one with no expiry at all.
func IsExpired(claims *Claims, now time.Time) bool {
	exp, err := ExpiryInstant(claims)
	if err != nil {
		return true
	}
	return !now.Before(exp)
}

// Fingerprint returns a base58 encoded SHA256 of the raw token, safe to log.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	return base58.Encode(hash[:8])
}
