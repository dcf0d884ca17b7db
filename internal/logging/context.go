package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Run identifies one logical workflow execution for tracing correlation.
// ThreadID groups a multi-call workflow, RunID one execution of it.
type Run struct {
	ThreadID string
	RunID    string
}

type runCtxKey struct{}
type componentCtxKey struct{}

// WithRun attaches run correlation tags to the context.
func WithRun(ctx context.Context, run Run) context.Context {
	return context.WithValue(ctx, runCtxKey{}, run)
}

// RunFromContext extracts run correlation tags, if present.
func RunFromContext(ctx context.Context) (Run, bool) {
	run, ok := ctx.Value(runCtxKey{}).(Run)
	return run, ok
}

// WithComponent labels the context with the originating component. Each
// collaborator sets its own label before making external calls.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentCtxKey{}, component)
}

// ComponentFromContext extracts the component label, if present.
func ComponentFromContext(ctx context.Context) string {
	component, _ := ctx.Value(componentCtxKey{}).(string)
	return component
}

// ContextFields extracts correlation data from context as zap fields.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if run, ok := RunFromContext(ctx); ok {
		fields = append(fields,
			zap.String("thread_id", run.ThreadID),
			zap.String("run_id", run.RunID),
		)
	}

	if component := ComponentFromContext(ctx); component != "" {
		fields = append(fields, zap.String("component", component))
	}

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	return fields
}
