// Package log carries a *zap.Logger and structured fields through a
// context.Context, the way utils/log does it in the teacher repo. Every
// long-lived core type (kdb.Handle and its get/set orchestrator)
// logs through a logger built this way: a struct field defaulting to
// zap.L(), enriched per call with log.WithContext(ctx, logger).With(...).
package log

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int

const (
	fieldsKey ctxKey = iota
	loggerKey ctxKey = iota
)

// WithContext enriches logger with whatever fields were attached to ctx
// via WithFields.
func WithContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	return logger.With(Fields(ctx)...)
}

// WithFields returns a context carrying fields in addition to whatever
// fields ctx already carried.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, fieldsKey, append(Fields(ctx), fields...))
}

// Fields extracts the fields attached to ctx, or an empty slice if none.
func Fields(ctx context.Context) []zap.Field {
	raw := ctx.Value(fieldsKey)
	if raw == nil {
		return []zap.Field{}
	}

	fields, ok := raw.([]zap.Field)
	if !ok {
		return []zap.Field{}
	}

	return fields
}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger extracts the logger attached to ctx via WithLogger, or nil if
// none was attached.
func Logger(ctx context.Context) *zap.Logger {
	raw := ctx.Value(loggerKey)
	if raw == nil {
		return nil
	}

	logger, ok := raw.(*zap.Logger)
	if !ok {
		return nil
	}

	return logger
}

// FromContext returns the logger attached to ctx, falling back to
// defaultLogger (and attaching it) if none was attached yet.
func FromContext(ctx context.Context, defaultLogger *zap.Logger) (*zap.Logger, context.Context) {
	logger := Logger(ctx)

	if logger == nil {
		logger = defaultLogger
		ctx = WithLogger(ctx, logger)
	}

	return logger, ctx
}
