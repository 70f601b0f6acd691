package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/authsession/internal/session"
)

var _ session.CredentialProvider = (*CredentialProvider)(nil)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CredentialProvider exchanges credentials for a token over the login endpoint.
type CredentialProvider struct {
	url        string
	httpClient *http.Client
}

// NewCredentialProvider creates a provider for cfg.ServerURL.
func NewCredentialProvider(cfg Config) (*CredentialProvider, error) {
	url, err := cfg.endpoint(loginPath)
	if err != nil {
		return nil, err
	}

	return &CredentialProvider{
		url:        url,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (p *CredentialProvider) Authenticate(ctx context.Context, email, password string) (session.AuthResponse, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return session.AuthResponse{}, fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return session.AuthResponse{}, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return session.AuthResponse{}, session.NewTransportError("login", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		msg := readErrorMessage(resp)
		log.Debug().Int("status", resp.StatusCode).Str("message", msg).Msg("credentials rejected")
		return session.AuthResponse{}, fmt.Errorf("%w: %s", session.ErrAuthenticationFailed, msg)
	default:
		return session.AuthResponse{}, session.NewTransportError("login",
			&statusError{code: resp.StatusCode, message: readErrorMessage(resp)})
	}

	var out session.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return session.AuthResponse{}, session.NewTransportError("login", fmt.Errorf("failed to decode response: %w", err))
	}

	return out, nil
}
