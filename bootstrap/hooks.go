package bootstrap

import (
	"context"
	"errors"
	"fmt"
)

// Hook is a lifecycle callback.
type Hook func(ctx context.Context) error

// OnStop registers hooks that run on shutdown, in reverse registration order.
func (a *App) OnStop(hooks ...Hook) {
	a.mu.Lock()
	a.onStop = append(a.onStop, hooks...)
	a.mu.Unlock()
}

// runHooks runs every hook in reverse order and joins their errors.
func runHooks(ctx context.Context, hooks []Hook) error {
	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			errs = append(errs, fmt.Errorf("hook %d failed: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
