package dag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/observability"
)

// Engine runs wired graphs.
type Engine struct {
	// Metrics receives per-component run metrics (nil disables them).
	Metrics *observability.PipelineMetrics
	// Logger defaults to the global logger.
	Logger *logger.Logger
}

// Execution is a started run.
type Execution struct {
	RunID string

	g      *Graph
	grp    *errgroup.Group
	span   trace.Span
	start  time.Time
	cancel context.CancelFunc
	log    *logger.Logger

	mu     sync.Mutex
	result *Result
	cause  error

	once sync.Once
	err  error
}

// Run starts g and waits for every component to finish.
func (e *Engine) Run(ctx context.Context, g *Graph) (*Result, error) {
	return e.Start(ctx, g).Wait()
}

// Start launches every component of g on its own goroutine and returns
// immediately. The first component failure aborts every edge of the graph
// so that the remaining components unblock and return.
func (e *Engine) Start(ctx context.Context, g *Graph) *Execution {
	log := e.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	runID := uuid.NewString()
	ctx = logger.ContextWithRunID(ctx, runID)
	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
	span.SetAttributes(
		attribute.String(observability.AttrRunID, runID),
		attribute.Int(observability.AttrComponents, g.Len()),
	)
	ctx, cancel := context.WithCancel(ctx)
	grp, gctx := errgroup.WithContext(ctx)

	x := &Execution{
		RunID:  runID,
		g:      g,
		grp:    grp,
		span:   span,
		start:  time.Now(),
		cancel: cancel,
		log:    log.WithContext(ctx),
		result: &Result{RunID: runID, NodeResults: make(map[string]NodeResult, g.Len())},
	}
	x.log.Info("Pipeline started", logger.Fields(logger.FieldCount, g.Len()))

	for _, c := range g.Instances() {
		if err := c.Transition(component.StateRunning); err != nil {
			x.fail(c, err)
			x.record(NodeResult{Instance: c.InstanceName(), Class: c.Class(), Status: "failed", Error: err})
			continue
		}
		grp.Go(func() error {
			return e.runComponent(gctx, x, c)
		})
	}
	return x
}

// Wait blocks until every component has returned and reports the first
// failure.
func (x *Execution) Wait() (*Result, error) {
	x.once.Do(func() {
		err := x.grp.Wait()
		x.cancel()

		x.mu.Lock()
		x.result.Duration = time.Since(x.start)
		if x.cause != nil {
			err = x.cause
		}
		x.mu.Unlock()

		status := observability.StatusOK
		if err != nil {
			status = observability.StatusFailed
			x.span.RecordError(err)
		}
		x.span.SetAttributes(attribute.String(observability.AttrStatus, status))
		x.span.End()

		fields := logger.Fields(
			logger.FieldDuration, x.result.Duration.Milliseconds(),
			logger.FieldStatus, status,
		)
		if err != nil {
			x.log.WithError(err).Error("Pipeline failed", fields)
		} else {
			x.log.Info("Pipeline finished", fields)
		}
		x.err = err
	})
	return x.result, x.err
}

// fail aborts the run after c failed. The first failure is the one Wait
// reports; later ones are usually consequences of the abort.
func (x *Execution) fail(c component.StreamComponent, err error) {
	x.mu.Lock()
	if x.cause == nil {
		x.cause = fmt.Errorf("%s: %w", c.InstanceName(), err)
	}
	x.mu.Unlock()

	x.g.Abort(fmt.Errorf("aborted after %s failed: %w", c.InstanceName(), err))
	x.cancel()
}

func (x *Execution) record(nr NodeResult) {
	x.mu.Lock()
	x.result.NodeResults[nr.Instance] = nr
	x.mu.Unlock()
}

// settle terminates outputs c left open after a successful run, releases
// its inputs and walks it to Terminated.
func settle(c component.StreamComponent, failed bool) error {
	var first error
	if !failed {
		for _, name := range c.OutputNames() {
			if err := c.Output(name).Terminate(); err != nil && first == nil {
				first = err
			}
		}
	}
	for _, name := range c.InputNames() {
		_ = c.Input(name).Close()
	}
	if c.State() == component.StateRunning {
		_ = c.Transition(component.StateDraining)
	}
	if c.State() == component.StateDraining {
		_ = c.Transition(component.StateTerminated)
	}
	return first
}
