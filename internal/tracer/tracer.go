// Package tracer instruments query execution. Spans follow the
// OpenTelemetry database semantic conventions, attributed from the
// generated statement itself.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names used by the execution layer.
const (
	SpanQueryRows = "querel.query.rows"
	SpanQueryExec = "querel.query.exec"
)

// Tracer starts spans around query execution.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is the minimal span surface execution needs.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code codes.Code, description string)
	End()
}

// NoopTracer produces no-op spans. It is the default when tracing is not
// configured.
type NoopTracer struct{}

func (NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, NoopSpan{}
}

// NoopSpan drops everything.
type NoopSpan struct{}

func (NoopSpan) SetAttributes(...attribute.KeyValue) {}
func (NoopSpan) RecordError(error)                   {}
func (NoopSpan) SetStatus(codes.Code, string)        {}
func (NoopSpan) End()                                {}

// OtelTracer adapts an OpenTelemetry trace.Tracer.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer wraps an OpenTelemetry tracer. tracer must not be nil.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) SetAttributes(attrs ...attribute.KeyValue) { s.span.SetAttributes(attrs...) }
func (s otelSpan) RecordError(err error)                     { s.span.RecordError(err) }
func (s otelSpan) SetStatus(c codes.Code, d string)          { s.span.SetStatus(c, d) }
func (s otelSpan) End()                                      { s.span.End() }

// Query describes one executed statement for span annotation.
type Query struct {
	SQL     string
	Driver  string
	Elapsed time.Duration
	// Rows is the affected-row count, 0 or -1 when not applicable.
	Rows int64
	Err  error
}

// Annotate records a finished statement on span using the database semantic
// conventions (db.system, db.statement, db.operation).
func Annotate(span Span, q Query) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", q.Driver),
		attribute.String("db.statement", q.SQL),
		attribute.String("db.operation", StatementKind(q.SQL)),
		attribute.Float64("db.duration_ms", float64(q.Elapsed.Microseconds())/1000.0),
	}
	if q.Rows > 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", q.Rows))
	}
	span.SetAttributes(attrs...)

	if q.Err != nil {
		span.RecordError(q.Err)
		span.SetStatus(codes.Error, q.Err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// StatementKind classifies a generated statement by its leading keyword.
// The generator emits SELECT and DELETE; the raw execution surface can carry
// anything, so the classification is deliberately loose.
func StatementKind(sql string) string {
	head := strings.ToUpper(strings.TrimSpace(sql))
	for _, kind := range []string{"SELECT", "WITH", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(head, kind) {
			if kind == "WITH" {
				return "SELECT"
			}
			return kind
		}
	}
	return "OTHER"
}
