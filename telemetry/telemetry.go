// Package telemetry reports entity cache activity through OpenTelemetry:
// a cache.Observer recording hit, miss, addition and removal counters, and
// a loader wrapper tracing every load.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the meter and tracer of this package.
const InstrumentationName = "@agentuity/go-entitycache/telemetry"

// CacheNameKey is the attribute carrying the name of the reporting cache.
const CacheNameKey = attribute.Key("entitycache.name")

type config struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// Option configures the telemetry helpers.
type Option func(*config)

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		c.meterProvider = mp
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tracerProvider = tp
	}
}

func applyOptions(opts []Option) config {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	if c.meterProvider == nil {
		c.meterProvider = otel.GetMeterProvider()
	}
	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	return c
}

// NewMeterProvider returns an SDK meter provider feeding reader and
// describing the process as serviceName.
func NewMeterProvider(ctx context.Context, serviceName string, reader sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating resource: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}
