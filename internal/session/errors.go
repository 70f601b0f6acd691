package session

import (
	"errors"
	"fmt"

	"github.com/wolfeidau/authsession/internal/tokencodec"
)

// Sentinel errors
var (
	// ErrAuthenticationFailed is returned when the server rejects the credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNotAuthenticated is returned when a login produced a token whose
	// claims do not describe an authenticated user.
	ErrNotAuthenticated = errors.New("token does not describe an authenticated user")

	// ErrNoToken is returned by the token source when no token is persisted.
	ErrNoToken = errors.New("no token")

	// ErrMalformedToken is re-exported from tokencodec for callers of this package.
	ErrMalformedToken = tokencodec.ErrMalformedToken
)

// TransportError reports a network or server failure while talking to a
// collaborator. Match it with errors.As.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a TransportError for op.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// IsTransportError reports whether err is, or wraps, a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// failureKind classifies err for metrics and logs.
func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return "authentication"
	case IsTransportError(err):
		return "transport"
	case errors.Is(err, ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	default:
		return "other"
	}
}
