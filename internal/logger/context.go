package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	profileIDKey ctxKey = "profile_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithProfileID tags the context with the cart profile the request acts on.
func WithProfileID(ctx context.Context, profileID string) context.Context {
	return context.WithValue(ctx, profileIDKey, profileID)
}

func ProfileIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(profileIDKey).(string); ok {
		return v
	}
	return ""
}

// FromCtx returns logger with request_id and profile_id added when present
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if profileID := ProfileIDFrom(ctx); profileID != "" {
		l = l.With(zap.String("profile_id", profileID))
	}
	return l
}
