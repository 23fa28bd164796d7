package tracer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNoopTracer_PreservesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	got, span := NoopTracer{}.StartSpan(ctx, SpanQueryRows)
	assert.Equal(t, "v", got.Value(key{}))

	// None of these may panic.
	span.SetAttributes(attribute.String("k", "v"))
	span.RecordError(errors.New("boom"))
	span.SetStatus(codes.Error, "boom")
	span.End()
}

// recordedSpan runs fn against a fresh in-memory exporter and returns the
// single span it produced.
func recordedSpan(t *testing.T, fn func(tr Tracer)) tracetest.SpanStub {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	fn(NewOtelTracer(tp.Tracer("test")))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	return spans[0]
}

func attrMap(stub tracetest.SpanStub) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(stub.Attributes))
	for _, kv := range stub.Attributes {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestAnnotate_SuccessfulQuery(t *testing.T) {
	stub := recordedSpan(t, func(tr Tracer) {
		_, span := tr.StartSpan(context.Background(), SpanQueryRows)
		Annotate(span, Query{
			SQL:     `SELECT * FROM "book"`,
			Driver:  "sqlite",
			Elapsed: 1500 * time.Microsecond,
			Rows:    -1,
		})
		span.End()
	})

	assert.Equal(t, SpanQueryRows, stub.Name)
	attrs := attrMap(stub)
	assert.Equal(t, "sqlite", attrs["db.system"].AsString())
	assert.Equal(t, `SELECT * FROM "book"`, attrs["db.statement"].AsString())
	assert.Equal(t, "SELECT", attrs["db.operation"].AsString())
	assert.InDelta(t, 1.5, attrs["db.duration_ms"].AsFloat64(), 0.001)
	assert.NotContains(t, attrs, attribute.Key("db.rows_affected"))
	assert.Equal(t, codes.Ok, stub.Status.Code)
}

func TestAnnotate_ExecReportsRowsAffected(t *testing.T) {
	stub := recordedSpan(t, func(tr Tracer) {
		_, span := tr.StartSpan(context.Background(), SpanQueryExec)
		Annotate(span, Query{
			SQL:    `DELETE FROM "book" WHERE "id" = ?`,
			Driver: "sqlite",
			Rows:   3,
		})
		span.End()
	})

	attrs := attrMap(stub)
	assert.Equal(t, "DELETE", attrs["db.operation"].AsString())
	assert.Equal(t, int64(3), attrs["db.rows_affected"].AsInt64())
}

func TestAnnotate_FailureRecordsError(t *testing.T) {
	stub := recordedSpan(t, func(tr Tracer) {
		_, span := tr.StartSpan(context.Background(), SpanQueryRows)
		Annotate(span, Query{
			SQL:    "SELECT nope",
			Driver: "sqlite",
			Err:    errors.New("no such column: nope"),
		})
		span.End()
	})

	assert.Equal(t, codes.Error, stub.Status.Code)
	assert.Equal(t, "no such column: nope", stub.Status.Description)
	require.Len(t, stub.Events, 1)
	assert.Equal(t, "exception", stub.Events[0].Name)
}

func TestStatementKind(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{`SELECT * FROM "book"`, "SELECT"},
		{"  select 1", "SELECT"},
		{`WITH t AS (SELECT 1) SELECT * FROM t`, "SELECT"},
		{`INSERT INTO "book" VALUES (?)`, "INSERT"},
		{`UPDATE "book" SET "title" = ?`, "UPDATE"},
		{`DELETE FROM "book"`, "DELETE"},
		{"PRAGMA table_info(book)", "OTHER"},
		{"", "OTHER"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatementKind(tc.sql), "sql: %q", tc.sql)
	}
}
