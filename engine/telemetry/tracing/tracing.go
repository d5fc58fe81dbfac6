// Package tracing wraps the OpenTelemetry SDK so the scan engine can open
// one root span per scan and child spans per phase without every caller
// importing the SDK directly.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Names of the spans the scan engine opens, one per pipeline phase.
const (
	SpanScan           = "kyc.scan"
	SpanCrawl          = "kyc.crawl"
	SpanAnalyzeContent = "kyc.analyze.content"
	SpanCheckout       = "kyc.checkout"
	SpanScore          = "kyc.score"
	SpanDecide         = "kyc.decide"
)

// NewTracerProvider returns an SDK tracer provider with no exporter attached
// by default; callers register an exporter via
// sdktrace.WithBatcher before calling otel.SetTracerProvider.
func NewTracerProvider(opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(opts...)
}

// Tracer is the small subset of otel's API the engine needs.
type Tracer struct {
	t trace.Tracer
}

// NewTracer returns a Tracer sourced from the global otel tracer provider
// under the given instrumentation name.
func NewTracer(name string) *Tracer {
	return &Tracer{t: otel.Tracer(name)}
}

// StartSpan opens a child span under the given name, returning the span and
// a context carrying it for further nesting.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, opts...)
}

// ExtractIDs pulls the hex trace and span IDs off whatever span is active in
// ctx, for correlation in structured logs. Returns empty strings when no
// span is recording.
func ExtractIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
