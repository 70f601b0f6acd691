package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// rawJSONCodec passes JSON bodies through unchanged so that callers can use
// procedures without generated message types.
type rawJSONCodec struct{}

func (rawJSONCodec) Name() string                       { return "json" }
func (rawJSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (rawJSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Caller makes unary Connect RPC calls with JSON bodies on behalf of the
// session. The token is attached by the auth interceptor and an
// unauthenticated response ends the session.
type Caller struct {
	baseURL    string
	httpClient *http.Client
	options    []connect.ClientOption
}

// NewCaller creates a caller for the API at cfg.ServerURL.
func NewCaller(cfg Config, s Session) (*Caller, error) {
	baseURL, err := cfg.endpoint("")
	if err != nil {
		return nil, err
	}

	if s == nil {
		return nil, errors.New("session is required")
	}

	return &Caller{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		options: []connect.ClientOption{
			connect.WithCodec(rawJSONCodec{}),
			ConnectOptions(s),
		},
	}, nil
}

// Call invokes procedure, e.g. "/pos.v1.OrderService/ListOrders", with body
// and returns the response body. An empty body is sent as {}.
func (c *Caller) Call(ctx context.Context, procedure string, body json.RawMessage) (json.RawMessage, error) {
	if !strings.HasPrefix(procedure, "/") {
		procedure = "/" + procedure
	}

	if len(body) == 0 {
		body = json.RawMessage("{}")
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("request body for %s is not valid JSON", procedure)
	}

	rpc := connect.NewClient[json.RawMessage, json.RawMessage](c.httpClient, c.baseURL+procedure, c.options...)

	resp, err := rpc.CallUnary(ctx, connect.NewRequest(&body))
	if err != nil {
		return nil, err
	}

	return *resp.Msg, nil
}
