// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package telemetry wires OpenTelemetry tracing for the queue controller
// and the HTTP surface.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/chatdj/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	serviceName   = "chatdj"
	flushDeadline = 5 * time.Second
)

// Config selects the exporter and sampler.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	ExporterType   string // grpc | http
	Endpoint       string
	SamplingRate   float64
}

// FromAppConfig maps the telemetry section of the app config.
func FromAppConfig(cfg config.TelemetryConfig, version string) Config {
	return Config{
		Enabled:        cfg.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		ExporterType:   cfg.Exporter,
		Endpoint:       cfg.Endpoint,
		SamplingRate:   cfg.SamplingRate,
	}
}

// Provider owns the installed tracer provider. The zero value is a
// disabled provider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider installs a global tracer provider for cfg. With tracing off
// it installs a no-op provider so spans cost nothing.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &Provider{}, nil
	}

	exp, err := newExporter(ctx, cfg.ExporterType, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentKey.String(cfg.Environment),
	))
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return &Provider{tp: tp}, nil
}

func newExporter(ctx context.Context, kind, endpoint string) (sdktrace.SpanExporter, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch kind {
	case "grpc":
		exp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	case "http":
		exp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	default:
		return nil, fmt.Errorf("telemetry: unknown exporter %q (want grpc or http)", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry %s exporter: %w", kind, err)
	}
	return exp, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	if rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	if rate <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

// Shutdown flushes buffered spans. It never waits longer than five seconds.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, flushDeadline)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
