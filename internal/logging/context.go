package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const loggerKey contextKey = iota

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from context, or returns the default logger
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return Default()
}

// WithField adds a string field to the logger in the context
func WithField(ctx context.Context, key, value string) context.Context {
	l := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, &l)
}

// WithClaim scopes the context logger to one claim
func WithClaim(ctx context.Context, claimID string) context.Context {
	return WithField(ctx, "claim_id", claimID)
}

// WithBatch scopes the context logger to one batch run
func WithBatch(ctx context.Context, batchID string) context.Context {
	return WithField(ctx, "batch_id", batchID)
}
