package config

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ObservabilityProviders holds in-process OpenTelemetry providers. Metrics are read on demand
// through Reader, spans stay in process and give log records and metrics their trace context.
type ObservabilityProviders struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	Reader         *metric.ManualReader
}

// NewObservabilityProviders creates the providers for serviceName.
func NewObservabilityProviders(ctx context.Context, serviceName string) (*ObservabilityProviders, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	reader := metric.NewManualReader()

	return &ObservabilityProviders{
		TracerProvider: trace.NewTracerProvider(trace.WithResource(res)),
		MeterProvider:  metric.NewMeterProvider(metric.WithReader(reader), metric.WithResource(res)),
		Reader:         reader,
	}, nil
}

// Shutdown shuts both providers down.
func (p *ObservabilityProviders) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return errors.Join(p.TracerProvider.Shutdown(ctx), p.MeterProvider.Shutdown(ctx))
}
