package logging

import (
	"context"

	"github.com/google/uuid"
)

// GenerateRequestID returns a time-ordered UUID (version 7) identifying one
// query or connection in the logs.
func GenerateRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type contextKey struct{}

// NewContext returns a context carrying l.
func NewContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored by NewContext, or a no-op logger.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(contextKey{}).(Logger); ok {
		return l
	}
	return NewNop()
}
