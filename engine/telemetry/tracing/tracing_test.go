package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestStartSpanHierarchy(t *testing.T) {
	tp := NewTracerProvider()
	defer tp.Shutdown(context.Background())
	tr := &Tracer{t: tp.Tracer("test")}

	ctx, root := tr.StartSpan(context.Background(), SpanScan)
	if !root.SpanContext().IsValid() {
		t.Fatalf("expected valid root span context")
	}
	ctx2, child := tr.StartSpan(ctx, SpanCrawl)
	if trace.SpanContextFromContext(ctx2).TraceID() != root.SpanContext().TraceID() {
		t.Fatalf("child span should share trace ID with parent")
	}
	child.End()
	root.End()
}

func TestExtractIDsNoSpan(t *testing.T) {
	traceID, spanID := ExtractIDs(context.Background())
	if traceID != "" || spanID != "" {
		t.Fatalf("expected empty ids with no active span")
	}
}

func TestExtractIDsWithSpan(t *testing.T) {
	tp := NewTracerProvider()
	defer tp.Shutdown(context.Background())
	tr := &Tracer{t: tp.Tracer("test")}
	ctx, span := tr.StartSpan(context.Background(), SpanScore)
	defer span.End()

	traceID, spanID := ExtractIDs(ctx)
	if traceID == "" || spanID == "" {
		t.Fatalf("expected non-empty ids once a span is active")
	}
}
