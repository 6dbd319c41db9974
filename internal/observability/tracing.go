// Package observability holds the Prometheus collectors and OpenTelemetry tracer.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const defaultServiceName = "huddle-api"

// Tracer starts every span the API records. It is a no-op until InitTracing
// installs a provider.
var Tracer trace.Tracer = otel.Tracer(defaultServiceName)

// TracingConfig selects the exporter and sampling for InitTracing.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
	Exporter       string // stdout or otlp
	OTLPEndpoint   string
	SamplerRatio   float64
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	if cfg.Exporter != "otlp" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if cfg.OTLPEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
	}
	return otlptracehttp.New(ctx, opts...)
}

func newSampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// InitTracing installs the global tracer provider and W3C propagators. The
// returned func flushes and stops the exporter.
func InitTracing(cfg TracingConfig) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if !cfg.Enabled {
		Tracer = otel.Tracer(cfg.ServiceName)
		return func(context.Context) error { return nil }, nil
	}

	ctx := context.Background()
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", cfg.Exporter, err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("environment", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SamplerRatio)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	Tracer = provider.Tracer(cfg.ServiceName)
	return provider.Shutdown, nil
}

// Span pairs a started span with the context that carries it.
type Span struct {
	trace.Span
	ctx context.Context
}

// NewSpan starts a child span of whatever span ctx carries.
func NewSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (*Span, context.Context) {
	ctx, span := Tracer.Start(ctx, name, opts...)
	return &Span{Span: span, ctx: ctx}, ctx
}

func (s *Span) AddAttributes(attrs ...attribute.KeyValue) {
	s.SetAttributes(attrs...)
}

// SetError marks the span failed. A nil err is ignored.
func (s *Span) SetError(err error) {
	if err == nil {
		return
	}
	s.RecordError(err)
	s.SetStatus(codes.Error, err.Error())
}

func (s *Span) TraceID() string {
	return s.SpanContext().TraceID().String()
}

func (s *Span) Context() context.Context {
	return s.ctx
}
