package logger

import (
	"context"
	"os"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Caller().Stack().Logger()
	}

	return logger
}

var _ connect.Interceptor = (*ConnectRequests)(nil)

// ConnectRequests logs outgoing Connect RPC calls at debug level and failed
// calls with their code.
type ConnectRequests struct {
	logger zerolog.Logger
}

func NewConnectRequests(logger zerolog.Logger) *ConnectRequests {
	return &ConnectRequests{logger: logger}
}

func (c *ConnectRequests) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return connect.UnaryFunc(func(
		ctx context.Context,
		req connect.AnyRequest,
	) (connect.AnyResponse, error) {
		started := time.Now()

		ctx = c.logger.With().
			Str("procedure", req.Spec().Procedure).
			Logger().WithContext(ctx)

		resp, err := next(ctx, req)

		if err != nil {
			zerolog.Ctx(ctx).Warn().
				Err(err).
				Str("code", connect.CodeOf(err).String()).
				Dur("duration", time.Since(started)).
				Msg("rpc call failed")

			return resp, err
		}

		zerolog.Ctx(ctx).Debug().
			Dur("duration", time.Since(started)).
			Msg("rpc call")

		return resp, err
	})
}

func (c *ConnectRequests) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return connect.StreamingClientFunc(func(
		ctx context.Context,
		spec connect.Spec,
	) connect.StreamingClientConn {
		ctx = c.logger.With().Str("procedure", spec.Procedure).Logger().WithContext(ctx)

		zerolog.Ctx(ctx).Debug().Msg("rpc client stream opened")

		return next(ctx, spec)
	})
}

// WrapStreamingHandler is not used for client interceptors.
func (c *ConnectRequests) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
