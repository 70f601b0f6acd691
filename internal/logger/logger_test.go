package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Level(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, Setup(false).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, Setup(true).GetLevel())
}

func TestConnectRequests_WrapUnary(t *testing.T) {
	var buf bytes.Buffer
	interceptor := NewConnectRequests(zerolog.New(&buf).Level(zerolog.DebugLevel))

	failing := connect.UnaryFunc(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("expired"))
	})

	_, err := interceptor.WrapUnary(failing)(context.Background(), connect.NewRequest(&struct{}{}))
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"code":"unauthenticated"`)
	assert.Contains(t, out, "rpc call failed")
}
