// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/chatdj/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestShouldTrace(t *testing.T) {
	for _, p := range []string{"/healthz", "/readyz", "/metrics"} {
		assert.False(t, shouldTrace(httptest.NewRequest(http.MethodGet, p, nil)), p)
	}
	for _, p := range []string{"/api/v1/links", "/ws/surface"} {
		assert.True(t, shouldTrace(httptest.NewRequest(http.MethodGet, p, nil)), p)
	}
}

func TestSpanNameFormatter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	assert.Equal(t, "HTTP GET /api/v1/state", spanNameFormatter("HTTP GET", req))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/state?token=secret", nil)
	assert.Equal(t, "HTTP GET /api/v1/state?", spanNameFormatter("HTTP GET", req))
}

func TestOTelHTTP_RecordsRoute(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(OTelHTTP("chatdj-test"))
	r.Post("/api/v1/queue/remove", func(w http.ResponseWriter, r *http.Request) {
		traceID, spanID := ExtractTraceContext(r)
		assert.NotEmpty(t, traceID)
		assert.NotEmpty(t, spanID)
		w.WriteHeader(http.StatusBadRequest)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/queue/remove", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "/api/v1/queue/remove", attrs[telemetry.HTTPRouteKey])
	assert.Equal(t, int64(http.StatusBadRequest), attrs[telemetry.HTTPStatusCodeKey])
	assert.NotEmpty(t, attrs["http.request_id"])
}
