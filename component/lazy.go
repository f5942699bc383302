package component

import (
	"context"
	"fmt"
	"sync"

	"github.com/Pret-a-LLOD/Fintan/logger"
)

// Lazy connects an external resource (database, broker) on first use, so
// building a pipeline never opens connections.
type Lazy[T any] struct {
	name        string
	mu          sync.RWMutex
	value       T
	initialized bool
	initializer func(ctx context.Context) (T, error)
	closer      func(T) error
}

// NewLazy creates a lazy resource with the given initializer.
func NewLazy[T any](name string, initializer func(context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{
		name:        name,
		initializer: initializer,
	}
}

// WithCloser sets the function releasing the resource.
func (l *Lazy[T]) WithCloser(fn func(T) error) *Lazy[T] {
	l.closer = fn
	return l
}

// Get returns the resource, initializing it with double-check locking.
// A failed initialization is retried on the next call.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.RLock()
	if l.initialized {
		v := l.value
		l.mu.RUnlock()
		return v, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if l.initialized {
		return l.value, nil
	}

	v, err := l.initializer(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to initialize %s: %w", l.name, err)
	}
	l.value = v
	l.initialized = true

	logger.Debug("Lazy resource initialized", logger.Fields(logger.FieldComponent, l.name))
	return v, nil
}

// IsInitialized reports whether Get has succeeded.
func (l *Lazy[T]) IsInitialized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initialized
}

// Close releases the resource if it was initialized.
func (l *Lazy[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return nil
	}
	l.initialized = false
	if l.closer != nil {
		return l.closer(l.value)
	}
	return nil
}
