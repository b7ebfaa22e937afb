package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"ledgercore/internal/core"
)

// Exporter names accepted by TracingConfig.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// TracingConfig configures the tracer provider.
type TracingConfig struct {
	// Exporter selects the span exporter: "none" or "stdout".
	Exporter string
	// Writer receives stdout spans. Nil means the process stdout.
	Writer      io.Writer
	ServiceName string
}

// Provider owns an OpenTelemetry tracer provider.
type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewProvider builds a tracer provider for cfg. Spans are exported
// synchronously so short-lived CLI runs do not lose them.
func NewProvider(cfg TracingConfig) (*Provider, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "ledgercore"
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
	}
	switch cfg.Exporter {
	case ExporterNone, "":
	case ExporterStdout:
		var exOpts []stdouttrace.Option
		if cfg.Writer != nil {
			exOpts = append(exOpts, stdouttrace.WithWriter(cfg.Writer))
		}
		exporter, err := stdouttrace.New(exOpts...)
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithSyncer(exporter))
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", cfg.Exporter)
	}
	tp := sdktrace.NewTracerProvider(opts...)
	return &Provider{provider: tp, tracer: tp.Tracer(name)}, nil
}

// Tracer returns a core.Tracer backed by the provider.
func (p *Provider) Tracer() core.Tracer {
	return NewOTelTracer(p.tracer)
}

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

// OTelTracer adapts an OpenTelemetry tracer to core.Tracer.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer wraps tracer.
func NewOTelTracer(tracer trace.Tracer) *OTelTracer {
	return &OTelTracer{tracer: tracer}
}

// Start implements core.Tracer.
func (t *OTelTracer) Start(ctx context.Context, operation string) (context.Context, core.TraceSpan) {
	ctx, span := t.tracer.Start(ctx, operation)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
