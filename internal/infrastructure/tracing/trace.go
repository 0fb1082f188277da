package tracing

import (
	"context"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbox/internal/shared/id"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLen bounds IDs accepted from clients.
const maxRequestIDLen = 128

type contextKey int

const requestIDKey contextKey = iota

// WithRequestID returns a context carrying rid.
func WithRequestID(ctx context.Context, rid id.RequestID) context.Context {
	return context.WithValue(ctx, requestIDKey, rid)
}

// RequestID returns the request ID in ctx, or "".
func RequestID(ctx context.Context) id.RequestID {
	rid, _ := ctx.Value(requestIDKey).(id.RequestID)
	return rid
}

// Logger returns base annotated with the request ID in ctx, if any.
func Logger(ctx context.Context, base *zap.Logger) *zap.Logger {
	if rid := RequestID(ctx); rid != "" {
		return base.With(zap.String("request_id", rid.String()))
	}
	return base
}

// incoming accepts a client-supplied ID when it is printable and short,
// and generates one otherwise.
func incoming(header string) id.RequestID {
	if header == "" || len(header) > maxRequestIDLen {
		return id.NewRequestID()
	}
	for i := 0; i < len(header); i++ {
		if header[i] < 0x21 || header[i] > 0x7e {
			return id.NewRequestID()
		}
	}
	return id.RequestID(header)
}
