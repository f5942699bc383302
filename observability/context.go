package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// ComponentRun holds observability context for one component of a run.
type ComponentRun struct {
	RunID     string
	Instance  string
	Class     string
	StartTime time.Time
	Metrics   *PipelineMetrics
}

// NewComponentRun creates a run record. If metrics is nil, metric recording
// is skipped.
func NewComponentRun(runID, instance, class string, metrics *PipelineMetrics) *ComponentRun {
	return &ComponentRun{
		RunID:     runID,
		Instance:  instance,
		Class:     class,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

type componentRunKey struct{}

// WithComponentRun stores a ComponentRun in the context.
func WithComponentRun(ctx context.Context, cr *ComponentRun) context.Context {
	return context.WithValue(ctx, componentRunKey{}, cr)
}

// ComponentRunFromContext retrieves the ComponentRun from context, or nil.
func ComponentRunFromContext(ctx context.Context) *ComponentRun {
	if cr, ok := ctx.Value(componentRunKey{}).(*ComponentRun); ok {
		return cr
	}
	return nil
}

// Start opens the component span and records the run start.
func (cr *ComponentRun) Start(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, SpanComponentRun)
	span.SetAttributes(
		attribute.String(AttrRunID, cr.RunID),
		attribute.String(AttrInstance, cr.Instance),
		attribute.String(AttrClass, cr.Class),
	)
	cr.StartTime = time.Now()
	cr.Metrics.RecordRunStart(ctx)
	return WithComponentRun(ctx, cr), span
}

// End closes the span and records the run outcome.
func (cr *ComponentRun) End(ctx context.Context, span trace.Span, err error) {
	duration := time.Since(cr.StartTime)
	status := StatusOK
	if err != nil {
		status = StatusFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	cr.Metrics.RecordRunEnd(ctx, cr.Class, status, duration)
}

// Duration returns the elapsed time since the run started.
func (cr *ComponentRun) Duration() time.Duration {
	return time.Since(cr.StartTime)
}
