package bootstrap

import (
	"time"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/logger"
)

// Option configures the App during creation.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	registry        *component.Registry
	gracefulTimeout *time.Duration
	name            string
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{name: "fintan"}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger. If not set, the logger is initialized
// from the logging settings.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithRegistry replaces the built-in component registry.
func WithRegistry(r *component.Registry) Option {
	return func(o *appOptions) {
		o.registry = r
	}
}

// WithGracefulTimeout sets the maximum duration of the shutdown hooks.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithServiceName sets the service name reported to OTLP collectors.
func WithServiceName(name string) Option {
	return func(o *appOptions) {
		o.name = name
	}
}
