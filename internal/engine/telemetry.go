package engine

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of engine spans.
const TracerName = "github.com/roach88/phdtrack/internal/engine"

// Span names and attribute keys.
const (
	SpanExecute      = "orchestrator.execute"
	spanStepPrefix   = "step."
	AttrOrchestrator = attribute.Key("phdtrack.orchestrator")
	AttrRequestID    = attribute.Key("phdtrack.request_id")
	AttrCached       = attribute.Key("phdtrack.cached")
	AttrAttempt      = attribute.Key("phdtrack.attempt")
	AttrTraceID      = attribute.Key("phdtrack.trace_id")
	AttrStep         = attribute.Key("phdtrack.step")
	AttrErrorCode    = attribute.Key("phdtrack.error_code")
)

// NewStdoutTracerProvider builds a tracer provider that pretty-prints spans
// to w. The caller must Shutdown the provider to flush batched spans.
func NewStdoutTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter)), nil
}

// InstallTracerProvider registers tp globally and returns a shutdown func.
func InstallTracerProvider(tp *sdktrace.TracerProvider) func(context.Context) error {
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

func defaultTracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// recordSpanError marks the span failed and tags it with the error code.
func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if e, ok := AsError(err); ok {
		span.SetAttributes(AttrErrorCode.String(string(e.Code)))
	}
}
