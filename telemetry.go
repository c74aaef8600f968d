package main

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// tracer follows whichever provider is registered globally, so spans started
// before SetupTelemetry are dropped and later ones are exported.
var tracer trace.Tracer = otel.Tracer("asteroids-arena")

// TelemetryConfig selects where spans go. An empty endpoint turns tracing
// off.
type TelemetryConfig struct {
	Endpoint    string  `env:"ASTEROIDS_OTEL_ENDPOINT"`
	Enabled     bool    `env:"ASTEROIDS_OTEL_ENABLED" envDefault:"true"`
	SampleRatio float64 `env:"ASTEROIDS_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

func (c TelemetryConfig) active() bool {
	return c.Enabled && c.Endpoint != ""
}

// SetupTelemetry registers an OTLP/HTTP tracer provider for service when the
// environment asks for one. The returned shutdown flushes pending spans.
func SetupTelemetry(ctx context.Context, service string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var cfg TelemetryConfig
	if err := env.Parse(&cfg); err != nil {
		return noop, fmt.Errorf("telemetry env: %w", err)
	}
	if !cfg.active() {
		return noop, nil
	}
	if cfg.SampleRatio <= 0 || cfg.SampleRatio > 1 {
		return noop, fmt.Errorf("sample ratio %v out of range (0, 1]", cfg.SampleRatio)
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(service),
		semconv.ServiceNamespace("asteroids-arena"),
	))
	if err != nil {
		return noop, fmt.Errorf("telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}
