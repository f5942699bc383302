package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfigs(t *testing.T) {
	tc := DefaultTracerConfig("fintan")
	if tc.ServiceName != "fintan" || tc.Endpoint != "localhost:4318" || tc.SampleRate != 1.0 || !tc.Insecure {
		t.Errorf("unexpected tracer defaults %+v", tc)
	}
	mc := DefaultMeterConfig("fintan")
	if mc.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", mc.Interval)
	}
}

func TestPipelineMetricsNoop(t *testing.T) {
	metrics, err := NewPipelineMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	ctx := context.Background()
	metrics.RecordSegmentRead(ctx, "w", "")
	metrics.RecordSegmentWritten(ctx, "l", "a")
	metrics.RecordDropped(ctx, "l", "b", 3)
	metrics.RecordBytes(ctx, "w", 128)
	metrics.RecordRunStart(ctx)
	metrics.RecordRunEnd(ctx, "fintan.load.RDFStreamLoader", StatusOK, time.Millisecond)
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var metrics *PipelineMetrics
	ctx := context.Background()
	metrics.RecordSegmentRead(ctx, "w", "")
	metrics.RecordSegmentWritten(ctx, "w", "")
	metrics.RecordDropped(ctx, "w", "", 1)
	metrics.RecordBytes(ctx, "w", 1)
	metrics.RecordRunStart(ctx)
	metrics.RecordRunEnd(ctx, "x", StatusFailed, time.Second)
}

func TestPipelineMetricsCollected(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewPipelineMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	metrics.RecordSegmentWritten(ctx, "loader", "")
	metrics.RecordSegmentWritten(ctx, "loader", "")
	metrics.RecordDropped(ctx, "loader", "b", 0)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	var written int64
	dropped := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "fintan.segments.written":
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatalf("unexpected data type %T", m.Data)
				}
				for _, dp := range sum.DataPoints {
					written += dp.Value
				}
			case "fintan.segments.dropped":
				dropped = true
			}
		}
	}
	if written != 2 {
		t.Errorf("expected 2 written segments, got %d", written)
	}
	if dropped {
		t.Error("zero drops should not be recorded")
	}
}

func TestComponentRunContext(t *testing.T) {
	cr := NewComponentRun("run-1", "loader", "fintan.load.RDFStreamLoader", nil)
	if cr.StartTime.IsZero() {
		t.Error("expected StartTime to be set")
	}

	ctx := WithComponentRun(context.Background(), cr)
	if got := ComponentRunFromContext(ctx); got != cr {
		t.Error("expected component run from context")
	}
	if ComponentRunFromContext(context.Background()) != nil {
		t.Error("expected nil when component run not set")
	}

	cr.StartTime = time.Now().Add(-50 * time.Millisecond)
	if d := cr.Duration(); d < 45*time.Millisecond {
		t.Errorf("expected duration around 50ms, got %v", d)
	}
}

func TestComponentRunSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	metrics, _ := NewPipelineMetrics(noop.NewMeterProvider().Meter("test"))

	ok := NewComponentRun("run-1", "a", "A", metrics)
	ctx, span := ok.Start(context.Background())
	if ComponentRunFromContext(ctx) != ok {
		t.Error("Start should store the run in the context")
	}
	ok.End(ctx, span, nil)

	failed := NewComponentRun("run-1", "b", "B", metrics)
	ctx, span = failed.Start(context.Background())
	failed.End(ctx, span, fmt.Errorf("boom"))

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != SpanComponentRun {
		t.Errorf("unexpected span name %q", spans[0].Name)
	}
	if spans[1].Status.Code != codes.Error {
		t.Errorf("expected error status on failed run, got %v", spans[1].Status.Code)
	}
}

func TestSetSpanError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "test-error")
	SetSpanError(ctx, fmt.Errorf("test error"))
	span.End()

	// Should not panic with background context
	SetSpanError(context.Background(), fmt.Errorf("no span error"))

	if len(exporter.GetSpans()) != 1 || len(exporter.GetSpans()[0].Events) == 0 {
		t.Fatal("expected recorded error event")
	}
	if got := exporter.GetSpans()[0].Status.Code; got != codes.Error {
		t.Errorf("expected error status, got %v", got)
	}
}

func TestServiceHealth(t *testing.T) {
	sh := NewServiceHealth("fintan", "1.0.0")
	if sh.Status != HealthStatusUp {
		t.Errorf("expected Status 'up', got %s", sh.Status)
	}

	ctx := context.Background()
	sh.Check(ctx, "registry", func(context.Context) error { return nil })
	if sh.Status != HealthStatusUp {
		t.Errorf("expected status 'up' after healthy check, got %s", sh.Status)
	}

	sh.Check(ctx, "pipelines", func(context.Context) error { return &DegradedError{Reason: "directory empty"} })
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected status 'degraded', got %s", sh.Status)
	}

	sh.Check(ctx, "metrics", func(context.Context) error { return fmt.Errorf("exporter down") })
	if sh.Status != HealthStatusDown {
		t.Errorf("expected status 'down', got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "late", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected 'down' not overridden by 'degraded', got %s", sh.Status)
	}
	if len(sh.Components) != 4 {
		t.Errorf("expected 4 components, got %d", len(sh.Components))
	}
	if sh.Components[2].Message != "exporter down" {
		t.Errorf("unexpected message %q", sh.Components[2].Message)
	}
}
