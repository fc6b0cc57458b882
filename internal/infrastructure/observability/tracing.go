package observability

import (
	"context"
	"fmt"
	"os"
	"time"

	"commuteos-backend/internal/domain/transit"
	appErrors "commuteos-backend/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerProvider wraps the SDK provider together with a ready tracer.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP gRPC collector, host:port.
	Endpoint    string
	SampleRate  float64
	Insecure    bool
	EnableDebug bool
}

// InitTracing installs a global tracer provider exporting over OTLP gRPC and
// a W3C trace context propagator.
func InitTracing(config TracingConfig, logger *zap.Logger) (*TracerProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ServiceName == "" {
		config.ServiceName = "commuteos"
	}
	if config.SampleRate == 0 {
		config.SampleRate = getSampleRate(config.Environment)
	}

	exporter, err := createOTLPExporter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := createResource(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(createSampler(config)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(NewPropagator())

	if config.EnableDebug {
		otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
			logger.Warn("OpenTelemetry error", zap.Error(err))
		}))
	}

	logger.Info("Tracing initialized",
		zap.String("service", config.ServiceName),
		zap.String("endpoint", config.Endpoint),
		zap.Float64("sample_rate", config.SampleRate),
	)

	return &TracerProvider{
		provider: tp,
		tracer:   tp.Tracer(config.ServiceName),
		config:   config,
	}, nil
}

// NewPropagator returns the propagator used across gateway and routing
// service hops.
func NewPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func createOTLPExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
	}
	if config.Insecure || endpoint == "localhost:4317" || endpoint == "127.0.0.1:4317" {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	return otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
}

func createResource(config TracingConfig) (*resource.Resource, error) {
	version := config.ServiceVersion
	if version == "" {
		version = "unknown"
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(version),
		attribute.String("deployment.environment", config.Environment),
	}
	if functionName := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); functionName != "" {
		attrs = append(attrs,
			attribute.String("faas.name", functionName),
			attribute.String("cloud.region", os.Getenv("AWS_REGION")),
		)
	}
	if hostname, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(hostname))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

func createSampler(config TracingConfig) sdktrace.Sampler {
	if config.SampleRate >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))
}

func getSampleRate(environment string) float64 {
	switch environment {
	case "production":
		return 0.05
	case "staging":
		return 0.1
	default:
		return 1.0
	}
}

// Shutdown flushes pending spans and stops the exporter.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.provider.Shutdown(ctx)
}

// Tracer returns the service tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// RouteComputer is anything that computes routes.
type RouteComputer interface {
	Compute(ctx context.Context, source, destination string) (*transit.RouteResult, error)
}

// TraceComputer wraps a RouteComputer with a span and a compute duration
// histogram. collector may be nil.
func TraceComputer(inner RouteComputer, tracer trace.Tracer, collector *Collector) RouteComputer {
	if tracer == nil {
		tracer = otel.Tracer("commuteos/routing")
	}
	return &tracedComputer{inner: inner, tracer: tracer, collector: collector}
}

type tracedComputer struct {
	inner     RouteComputer
	tracer    trace.Tracer
	collector *Collector
}

func (c *tracedComputer) Compute(ctx context.Context, source, destination string) (*transit.RouteResult, error) {
	ctx, span := c.tracer.Start(ctx, "RouteComputer.Compute",
		trace.WithAttributes(
			attribute.String("route.source", source),
			attribute.String("route.destination", destination),
		),
	)
	defer span.End()

	start := time.Now()
	route, err := c.inner.Compute(ctx, source, destination)
	if c.collector != nil {
		c.collector.RecordDuration("route_compute", time.Since(start), nil)
	}

	if err != nil {
		span.SetAttributes(attribute.String("error.type", string(appErrors.TypeOf(err))))
		if !appErrors.IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("route.hops", len(route.Path)-1),
		attribute.Float64("route.estimated_time", route.EstimatedTime),
	)
	span.SetStatus(codes.Ok, "")
	return route, nil
}
