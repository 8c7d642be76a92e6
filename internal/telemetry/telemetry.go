// Package telemetry wires distributed tracing around the routing pool and
// scheduler round-trips, adapted from the teacher's Application Insights
// provider but targeting a plain OTLP collector instead (see DESIGN.md for
// why the Application Insights exporter itself was dropped).
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the tracer provider. An empty Endpoint disables
// exporting; Tracer() still returns a usable no-op tracer in that case.
type Config struct {
	ServiceName string
	Endpoint    string // host:port, no scheme
}

// Init builds a tracer provider per cfg and registers it as the global
// otel provider, returning a shutdown func to flush on exit.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// Tracer returns the package-scoped tracer used around routing pool calls
// and scheduler round-trips.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/trasaroute/trasaroute")
}
