package dag

import (
	"context"
	"fmt"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/observability"
)

// runComponent runs one component with a span, run metrics and logging,
// then settles its slots. A failure aborts the whole run before the
// component's inputs are released.
func (e *Engine) runComponent(ctx context.Context, x *Execution, c component.StreamComponent) (err error) {
	cr := observability.NewComponentRun(x.RunID, c.InstanceName(), c.Class(), e.Metrics)
	ctx, span := cr.Start(ctx)
	log := x.log.WithFields(logger.Fields(
		logger.FieldInstance, c.InstanceName(),
		logger.FieldClass, c.Class(),
	))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("component %s panicked: %v", c.InstanceName(), r)
		}
		if err == nil {
			err = settle(c, false)
		}
		if err != nil {
			x.fail(c, err)
			_ = settle(c, true)
		}
		cr.End(ctx, span, err)

		nr := NodeResult{
			Instance: c.InstanceName(),
			Class:    c.Class(),
			Status:   "completed",
			Duration: cr.Duration(),
		}
		fields := logger.Fields(logger.FieldDuration, cr.Duration().Milliseconds())
		if err != nil {
			nr.Status = "failed"
			nr.Error = err
			fields[logger.FieldError] = err.Error()
			log.Error("Component failed", fields)
		} else {
			log.Debug("Component completed", fields)
		}
		x.record(nr)
	}()

	log.Debug("Component started")
	return c.Start(ctx)
}
