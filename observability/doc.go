// Package observability wires OpenTelemetry tracing and metrics into
// pipeline runs.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("fintan"))
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("fintan"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewPipelineMetrics(observability.Meter("fintan"))
//	metrics.RecordSegmentWritten(ctx, "loader", "")
//
// Every component run gets a span and a run record:
//
//	run := observability.NewComponentRun(runID, "loader", "fintan.load.RDFStreamLoader", metrics)
//	ctx, span := run.Start(ctx)
//	defer run.End(ctx, span, err)
//
// A nil *PipelineMetrics is valid and records nothing.
package observability
