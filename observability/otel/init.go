package otel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"rebasevault/config"
)

const (
	// DefaultServiceName is reported when the caller names no service.
	DefaultServiceName = "vaultd"
	// DefaultEndpoint is the local OTLP/HTTP collector.
	DefaultEndpoint = "localhost:4318"

	serviceNamespace = "rebasevault"
)

// Providers holds what Init installed. Tracer and Meter are nil for signals
// that were not enabled.
type Providers struct {
	Resource *resource.Resource
	Tracer   *sdktrace.TracerProvider
	Meter    *sdkmetric.MeterProvider

	shutdown []func(context.Context) error
}

// Shutdown flushes and stops the providers in reverse start order. It is safe
// on a nil or disabled Providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var firstErr error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		if err := p.shutdown[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.shutdown = nil
	return firstErr
}

// Init exports vault traces and metrics as the Telemetry section describes.
// Disabled telemetry installs nothing and returns an empty Providers.
func Init(ctx context.Context, service, environment string, cfg config.Telemetry) (*Providers, error) {
	providers := &Providers{}
	if !cfg.Enabled {
		return providers, nil
	}
	if strings.TrimSpace(service) == "" {
		service = DefaultServiceName
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	headers := ParseHeaders(cfg.Headers)

	res, err := vaultResource(service, environment)
	if err != nil {
		return nil, err
	}
	providers.Resource = res

	if cfg.Traces {
		traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		}
		if len(headers) > 0 {
			traceOpts = append(traceOpts, otlptracehttp.WithHeaders(headers))
		}
		traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		providers.Tracer = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(2*time.Second)),
		)
		otel.SetTracerProvider(providers.Tracer)
		providers.shutdown = append(providers.shutdown, providers.Tracer.Shutdown)
	}

	if cfg.Metrics {
		metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		if len(headers) > 0 {
			metricOpts = append(metricOpts, otlpmetrichttp.WithHeaders(headers))
		}
		metricExporter, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			_ = providers.Shutdown(ctx)
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		providers.Meter = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		)
		otel.SetMeterProvider(providers.Meter)
		providers.shutdown = append(providers.shutdown, providers.Meter.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return providers, nil
}

func vaultResource(service, environment string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(service),
		semconv.ServiceNamespaceKey.String(serviceNamespace),
	}
	if environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}
	return res, nil
}

// ParseHeaders reads the Telemetry Headers value, "key=value,key=value", into
// exporter headers. Entries without a key or an equals sign are skipped.
func ParseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}
