package observe

import (
	"context"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Operation names a document operation for spans, metrics and logs.
type Operation string

const (
	OpLoad        Operation = "load"
	OpSave        Operation = "save"
	OpReload      Operation = "reload"
	OpSectionLoad Operation = "section.load"
	OpValueLoad   Operation = "value.load"
)

// verbose reports whether successful runs of op are routine enough to log at
// debug rather than info.
func (op Operation) verbose() bool {
	return op == OpSectionLoad || op == OpValueLoad
}

// DocumentMeta describes a configuration document for telemetry purposes.
type DocumentMeta struct {
	Path   string // File path as given to the manager
	Format string // Strategy name, e.g. "yaml" (optional)
}

// Name returns the base name of the document file.
func (m DocumentMeta) Name() string {
	if m.Path == "" {
		return ""
	}
	return filepath.Base(m.Path)
}

// SpanName returns the deterministic span name for op.
// Format: config.<op>
func SpanName(op Operation) string {
	return "config." + string(op)
}

func (m DocumentMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("document.path", m.Path),
		attribute.String("document.name", m.Name()),
	}
	if m.Format != "" {
		attrs = append(attrs, attribute.String("document.format", m.Format))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with document-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for op on the document. target is the dot
	// path the operation concerns, or empty for whole-document operations.
	StartSpan(ctx context.Context, meta DocumentMeta, op Operation, target string) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return NewNoopTracer()
	}
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with document metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta DocumentMeta, op Operation, target string) (context.Context, trace.Span) {
	attrs := append(meta.attributes(),
		attribute.String("config.operation", string(op)),
		attribute.Bool("config.error", false), // Updated in EndSpan
	)
	if target != "" {
		attrs = append(attrs, attribute.String("config.path", target))
	}

	return t.tracer.Start(ctx, SpanName(op),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("config.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a tracer whose spans are discarded.
func NewNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, _ DocumentMeta, op Operation, _ string) (context.Context, trace.Span) {
	return t.noop.Start(ctx, SpanName(op))
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
