package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	// Service information
	ServiceName    = "github.com/irfndi/dealer-trust-engine"
	ServiceVersion = "1.0.0"
)

// TelemetryConfig holds configuration for telemetry
type TelemetryConfig struct {
	Enabled        bool
	Exporter       string // "otlp" or "stdout"
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SampleRate     float64
}

// Provider holds the tracer provider installed by InitTelemetry.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
}

// InitTelemetry installs a global tracer provider. With telemetry disabled it
// returns a provider whose Shutdown is a no-op and leaves the global no-op tracer.
func InitTelemetry(ctx context.Context, config TelemetryConfig) (*Provider, error) {
	if !config.Enabled {
		return &Provider{}, nil
	}

	exporter, err := newExporter(ctx, config)
	if err != nil {
		return nil, err
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = ServiceName
	}
	serviceVersion := config.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = ServiceVersion
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tracerProvider: tp}, nil
}

func newExporter(ctx context.Context, config TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(config.Exporter) {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		return exp, nil
	case "", "otlp":
		endpoint := config.OTLPEndpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", config.Exporter)
	}
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.tracerProvider != nil
}

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.tracerProvider.Shutdown(ctx)
}
