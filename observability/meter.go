package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Pret-a-LLOD/Fintan/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns defaults for a local collector.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(ctx, config.ServiceName, config.ServiceVersion)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// PipelineMetrics holds the instruments recorded while pipelines run.
type PipelineMetrics struct {
	segmentsRead    metric.Int64Counter
	segmentsWritten metric.Int64Counter
	segmentsDropped metric.Int64Counter
	bytesWritten    metric.Int64Counter
	componentRuns   metric.Int64Counter
	runDuration     metric.Float64Histogram
	activeRuns      metric.Int64UpDownCounter
}

// NewPipelineMetrics creates metric instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	segmentsRead, err := meter.Int64Counter("fintan.segments.read",
		metric.WithDescription("Segments taken from handoff channels"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fintan.segments.read counter: %w", err)
	}

	segmentsWritten, err := meter.Int64Counter("fintan.segments.written",
		metric.WithDescription("Segments put into handoff channels"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fintan.segments.written counter: %w", err)
	}

	segmentsDropped, err := meter.Int64Counter("fintan.segments.dropped",
		metric.WithDescription("Segments skipped because they failed or had no output stream"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fintan.segments.dropped counter: %w", err)
	}

	bytesWritten, err := meter.Int64Counter("fintan.bytes.written",
		metric.WithDescription("Serialized bytes written to byte streams"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fintan.bytes.written counter: %w", err)
	}

	componentRuns, err := meter.Int64Counter("fintan.component.runs",
		metric.WithDescription("Completed component runs by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fintan.component.runs counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram("fintan.component.duration",
		metric.WithDescription("Duration of component runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fintan.component.duration histogram: %w", err)
	}

	activeRuns, err := meter.Int64UpDownCounter("fintan.component.active",
		metric.WithDescription("Number of currently running components"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fintan.component.active gauge: %w", err)
	}

	return &PipelineMetrics{
		segmentsRead:    segmentsRead,
		segmentsWritten: segmentsWritten,
		segmentsDropped: segmentsDropped,
		bytesWritten:    bytesWritten,
		componentRuns:   componentRuns,
		runDuration:     runDuration,
		activeRuns:      activeRuns,
	}, nil
}

func streamAttrs(instance, stream string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String(AttrInstance, instance),
		attribute.String(AttrStream, stream),
	)
}

// RecordSegmentRead counts one segment consumed by instance on stream.
func (m *PipelineMetrics) RecordSegmentRead(ctx context.Context, instance, stream string) {
	if m == nil {
		return
	}
	m.segmentsRead.Add(ctx, 1, streamAttrs(instance, stream))
}

// RecordSegmentWritten counts one segment produced by instance on stream.
func (m *PipelineMetrics) RecordSegmentWritten(ctx context.Context, instance, stream string) {
	if m == nil {
		return
	}
	m.segmentsWritten.Add(ctx, 1, streamAttrs(instance, stream))
}

// RecordDropped counts n segments that instance could not deliver.
func (m *PipelineMetrics) RecordDropped(ctx context.Context, instance, stream string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.segmentsDropped.Add(ctx, n, streamAttrs(instance, stream))
}

// RecordBytes counts serialized bytes written by instance.
func (m *PipelineMetrics) RecordBytes(ctx context.Context, instance string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.bytesWritten.Add(ctx, n, metric.WithAttributes(attribute.String(AttrInstance, instance)))
}

// RecordRunStart increments the active component count.
func (m *PipelineMetrics) RecordRunStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRuns.Add(ctx, 1)
}

// RecordRunEnd decrements active components and records the completed run.
func (m *PipelineMetrics) RecordRunEnd(ctx context.Context, class, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.activeRuns.Add(ctx, -1)
	m.componentRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClass, class),
		attribute.String(AttrStatus, status),
	))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrClass, class),
	))
}
