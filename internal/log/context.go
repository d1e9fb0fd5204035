// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	surfaceIDKey
)

// correlation maps context keys to the log fields they populate.
var correlation = [...]struct {
	key   ctxKey
	field string
}{
	{requestIDKey, FieldRequestID},
	{surfaceIDKey, FieldSurfaceID},
}

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

// ContextWithRequestID tags ctx with the HTTP request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// ContextWithSurfaceID tags ctx with the player surface a message came from.
func ContextWithSurfaceID(ctx context.Context, id string) context.Context {
	return withValue(ctx, surfaceIDKey, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

// SurfaceIDFromContext returns the surface id, or "".
func SurfaceIDFromContext(ctx context.Context) string { return stringValue(ctx, surfaceIDKey) }

// WithContext adds whatever correlation ids ctx carries to logger.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	var (
		b     zerolog.Context
		dirty bool
	)
	for _, c := range correlation {
		v := stringValue(ctx, c.key)
		if v == "" {
			continue
		}
		if !dirty {
			b, dirty = logger.With(), true
		}
		b = b.Str(c.field, v)
	}
	if !dirty {
		return logger
	}
	return b.Logger()
}

// WithComponentFromContext is WithComponent on the request logger, with the
// correlation ids of ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	l := FromContext(ctx).With().Str(FieldComponent, component).Logger()
	return WithContext(ctx, l)
}

// FromContext returns the logger stored in ctx by the HTTP middleware, or
// the base logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	b := Base()
	return &b
}
