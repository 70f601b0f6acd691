package client

import (
	"context"
	"errors"
	"io"
	"sync"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/authsession/internal/logger"
)

// Session is the part of the session manager the interceptor needs.
type Session interface {
	GetToken() string
	Logout(clearToken bool)
}

var _ connect.Interceptor = (*AuthInterceptor)(nil)

// AuthInterceptor adds the session token to Connect RPC requests. A request
// rejected as unauthenticated ends the session and deletes the token.
type AuthInterceptor struct {
	session Session
}

// NewAuthInterceptor creates an interceptor backed by s.
func NewAuthInterceptor(s Session) *AuthInterceptor {
	return &AuthInterceptor{session: s}
}

// ConnectOptions authenticates and logs the Connect RPC calls of a client.
func ConnectOptions(s Session) connect.ClientOption {
	return connect.WithInterceptors(
		NewAuthInterceptor(s),
		logger.NewConnectRequests(log.Logger),
	)
}

// WrapUnary implements connect.Interceptor.
func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		sent := i.addAuthHeader(req.Header())

		resp, err := next(ctx, req)
		if err != nil {
			i.checkUnauthenticated(err, sent, req.Spec().Procedure)
		}
		return resp, err
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		sent := i.addAuthHeader(conn.RequestHeader())

		return &authStreamConn{
			StreamingClientConn: conn,
			check: func(err error) {
				i.checkUnauthenticated(err, sent, spec.Procedure)
			},
		}
	}
}

// WrapStreamingHandler is not used for client interceptors.
func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

// addAuthHeader reports whether a token was attached. Requests without a
// session go out unauthenticated and the server decides.
func (i *AuthInterceptor) addAuthHeader(headers interface{ Set(string, string) }) bool {
	token := i.session.GetToken()
	if token == "" {
		return false
	}
	headers.Set("Authorization", "Bearer "+token)
	return true
}

func (i *AuthInterceptor) checkUnauthenticated(err error, sent bool, procedure string) {
	if !sent || connect.CodeOf(err) != connect.CodeUnauthenticated {
		return
	}

	log.Info().Str("procedure", procedure).Msg("server rejected session token, logging out")
	i.session.Logout(true)
}

// authStreamConn watches stream errors for an unauthenticated response.
type authStreamConn struct {
	connect.StreamingClientConn
	check func(error)
	once  sync.Once
}

func (c *authStreamConn) Receive(msg any) error {
	err := c.StreamingClientConn.Receive(msg)
	c.observe(err)
	return err
}

func (c *authStreamConn) CloseResponse() error {
	err := c.StreamingClientConn.CloseResponse()
	c.observe(err)
	return err
}

func (c *authStreamConn) observe(err error) {
	if err == nil || errors.Is(err, io.EOF) {
		return
	}
	c.once.Do(func() { c.check(err) })
}
