package logx

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

// With returns a context whose logger carries the extra fields. Fields
// accumulate across nested calls.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, loggerKey{}, From(ctx).With(fields...))
}

// From returns the logger carried by ctx, or the package logger when the
// context has none.
func From(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return L
}
