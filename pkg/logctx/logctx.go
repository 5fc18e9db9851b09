// Package logctx carries a zerolog logger through context.Context so the
// graph, scheduler and test runner packages don't have to thread a logger
// parameter through every call.
package logctx

import (
	"context"

	"github.com/rs/zerolog"
)

type logKey struct{}

// WithLogger attaches the given logger to the context
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, logKey{}, logger)
}

// FromContext returns the logger attached to the context. If no logger was
// attached, a disabled logger is returned so library code can log
// unconditionally.
func FromContext(ctx context.Context) *zerolog.Logger {
	logger, ok := ctx.Value(logKey{}).(*zerolog.Logger)
	if !ok {
		nop := zerolog.Nop()
		return &nop
	}

	return logger
}
