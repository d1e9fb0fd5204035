// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"

	"github.com/ManuGH/chatdj/internal/telemetry"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// untraced are probe and scrape paths that would drown real traffic.
var untraced = map[string]bool{"/healthz": true, "/readyz": true, "/metrics": true}

// OTelHTTP opens a server span per request. Route pattern, status and
// request id are attached after the handler runs.
func OTelHTTP(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(annotateSpan(next), service,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithFilter(shouldTrace),
			otelhttp.WithSpanNameFormatter(spanNameFormatter),
		)
	}
}

func annotateSpan(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		span := trace.SpanFromContext(r.Context())
		if !span.IsRecording() {
			return
		}
		span.SetAttributes(telemetry.HTTPAttributes(r.Method, routeOf(r), pathOnly(r), ww.Status())...)
		if id := ww.Header().Get(HeaderRequestID); id != "" {
			span.SetAttributes(attribute.String("http.request_id", id))
		}
	})
}

func shouldTrace(r *http.Request) bool { return !untraced[r.URL.Path] }

// spanNameFormatter appends the path to otelhttp's operation name. A query
// is reduced to a bare "?" so values never reach the tracing backend.
func spanNameFormatter(operation string, r *http.Request) string {
	return operation + " " + pathOnly(r)
}

func pathOnly(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?"
}

// ExtractTraceContext reports the ids of the span active on r, if any.
func ExtractTraceContext(r *http.Request) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(r.Context())
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
