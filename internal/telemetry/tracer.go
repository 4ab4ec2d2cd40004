package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/foo-controller/pkg/logging"
)

// TracerProviderOption is a function that configures the tracer provider setup
type TracerProviderOption func(*tracerProviderConfig)

type tracerProviderConfig struct {
	serviceName    string
	serviceVersion string
	instanceID     string
	tracingConfig  *TracingConfig
}

// WithTracerServiceName sets the service name for the tracer provider
func WithTracerServiceName(name string) TracerProviderOption {
	return func(cfg *tracerProviderConfig) {
		cfg.serviceName = name
	}
}

// WithTracerServiceVersion sets the service version for the tracer provider
func WithTracerServiceVersion(version string) TracerProviderOption {
	return func(cfg *tracerProviderConfig) {
		cfg.serviceVersion = version
	}
}

// WithTracerInstanceID sets the service instance id. A random id is used
// when unset.
func WithTracerInstanceID(id string) TracerProviderOption {
	return func(cfg *tracerProviderConfig) {
		cfg.instanceID = id
	}
}

// WithTracingConfig sets the tracing configuration
func WithTracingConfig(tc *TracingConfig) TracerProviderOption {
	return func(cfg *tracerProviderConfig) {
		cfg.tracingConfig = tc
	}
}

// NewTracerProvider creates the TracerProvider used for reconcile spans and
// installs it globally. Spans always carry trace ids; they are exported only
// when an endpoint is configured. Callers release it with Shutdown.
func NewTracerProvider(ctx context.Context, opts ...TracerProviderOption) (trace.TracerProvider, error) {
	cfg := &tracerProviderConfig{
		serviceName:    DefaultServiceName,
		serviceVersion: "unknown",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.instanceID == "" {
		cfg.instanceID = uuid.NewString()
	}

	tc := cfg.tracingConfig
	if tc == nil {
		tc = &TracingConfig{}
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.serviceName),
			semconv.ServiceVersion(cfg.serviceVersion),
			semconv.ServiceInstanceID(cfg.instanceID),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tc.GetSampling()))),
	}

	endpoint := tc.GetEndpoint()
	if tc.ExportEnabled() {
		exporter, err := createOTLPTracingExporter(ctx, endpoint, tc.Insecure)
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !tc.ExportEnabled() {
		logging.Info("Telemetry", "Span export disabled, trace ids are still generated (instance=%s)", cfg.instanceID)
		return tp, nil
	}

	if tc.Insecure {
		logging.Warn("Telemetry", "Tracing configured with insecure connection to %s", endpoint)
	}
	logging.Info("Telemetry", "Tracing initialized (endpoint=%s, sampling=%v, instance=%s)",
		endpoint, tc.GetSampling(), cfg.instanceID)

	return tp, nil
}

// createOTLPTracingExporter creates an OTLP HTTP trace exporter. Endpoints
// with a scheme are taken as full URLs.
func createOTLPTracingExporter(ctx context.Context, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	var opts []otlptracehttp.Option
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

// Shutdown flushes and stops tp if it exports spans.
func Shutdown(ctx context.Context, tp trace.TracerProvider) error {
	if sdkTP, ok := tp.(*sdktrace.TracerProvider); ok {
		return sdkTP.Shutdown(ctx)
	}
	return nil
}
