package session

import (
	"context"

	"github.com/wolfeidau/authsession/internal/models"
)

// AuthResponse is the server's answer to a successful credential exchange.
type AuthResponse struct {
	AccessToken string `json:"accessToken"`
}

// CredentialProvider exchanges an email and password for an access token.
// It must not touch the token store or the session state.
type CredentialProvider interface {
	// Authenticate returns ErrAuthenticationFailed for bad credentials and a
	// *TransportError for network or server failures.
	Authenticate(ctx context.Context, email, password string) (AuthResponse, error)
}

// ProfileFetcher resolves the authenticated caller into a full profile.
type ProfileFetcher interface {
	// FetchCurrentUser is only called while authenticated. Network and server
	// failures are reported as *TransportError.
	FetchCurrentUser(ctx context.Context) (models.User, error)
}

// CredentialProviderFunc adapts a function to CredentialProvider.
type CredentialProviderFunc func(ctx context.Context, email, password string) (AuthResponse, error)

func (f CredentialProviderFunc) Authenticate(ctx context.Context, email, password string) (AuthResponse, error) {
	return f(ctx, email, password)
}

// ProfileFetcherFunc adapts a function to ProfileFetcher.
type ProfileFetcherFunc func(ctx context.Context) (models.User, error)

func (f ProfileFetcherFunc) FetchCurrentUser(ctx context.Context) (models.User, error) {
	return f(ctx)
}
