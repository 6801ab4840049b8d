// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

// Correlation ids carried through contexts, keyed by the log field they
// are written to.
const (
	requestIDKey ctxKey = FieldRequestID
	tickIDKey    ctxKey = FieldTickID
)

var correlationKeys = []ctxKey{requestIDKey, tickIDKey}

func withID(ctx context.Context, key ctxKey, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, id)
}

func idFrom(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// ContextWithRequestID tags ctx with the HTTP request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withID(ctx, requestIDKey, id)
}

// ContextWithTickID tags ctx with the id of the running poll tick.
func ContextWithTickID(ctx context.Context, id string) context.Context {
	return withID(ctx, tickIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string { return idFrom(ctx, requestIDKey) }
func TickIDFromContext(ctx context.Context) string    { return idFrom(ctx, tickIDKey) }

// WithContext adds every correlation id present in ctx to logger.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	var builder *zerolog.Context
	for _, key := range correlationKeys {
		id := idFrom(ctx, key)
		if id == "" {
			continue
		}
		if builder == nil {
			c := logger.With()
			builder = &c
		}
		*builder = builder.Str(string(key), id)
	}
	if builder == nil {
		return logger
	}
	return builder.Logger()
}

// WithComponentFromContext is WithComponent plus the correlation ids in ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
