// Package client implements the HTTP collaborators of the session manager.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	loginPath   = "/api/v1/auth/login"
	profilePath = "/api/v1/auth/me"

	// maxErrorBody bounds how much of an error response is kept for messages.
	maxErrorBody = 4096
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration

	// CacheDir enables the disk backed profile cache; empty uses memory.
	CacheDir string
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "https://localhost:8080",
		Timeout:   30 * time.Second,
	}
}

func (c Config) endpoint(path string) (string, error) {
	if c.ServerURL == "" {
		return "", errors.New("server url is required")
	}
	return strings.TrimRight(c.ServerURL, "/") + path, nil
}

// errorResponse is the error body returned by the API.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// readErrorMessage extracts a readable message from a failed response.
func readErrorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return resp.Status
	}

	var er errorResponse
	if json.Unmarshal(body, &er) == nil {
		switch {
		case er.Message != "":
			return er.Message
		case er.Error != "":
			return er.Error
		}
	}

	return strings.TrimSpace(string(body))
}

type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.message)
}
