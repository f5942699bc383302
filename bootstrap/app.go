package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/components"
	"github.com/Pret-a-LLOD/Fintan/config"
	"github.com/Pret-a-LLOD/Fintan/dag"
	"github.com/Pret-a-LLOD/Fintan/endpoint"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/observability"
	"github.com/Pret-a-LLOD/Fintan/resilience"
	"github.com/Pret-a-LLOD/Fintan/version"
)

// App holds everything shared by the pipeline runs of one process.
type App struct {
	Settings *config.Settings
	Logger   *logger.Logger
	Registry *component.Registry
	Metrics  *observability.PipelineMetrics

	httpClient      *http.Client
	retry           resilience.RetryConfig
	gracefulTimeout time.Duration

	mu     sync.Mutex
	onStop []Hook
}

// NewApp validates settings and initializes logging, telemetry and the
// component registry. Telemetry providers are shut down by Shutdown.
func NewApp(ctx context.Context, settings *config.Settings, opts ...Option) (*App, error) {
	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings validation: %w", err)
	}
	o := resolveOptions(opts)

	a := &App{
		Settings:        settings,
		gracefulTimeout: 15 * time.Second,
		httpClient:      &http.Client{Timeout: settings.Fetch.Timeout},
	}
	if o.gracefulTimeout != nil {
		a.gracefulTimeout = *o.gracefulTimeout
	}
	if o.logger != nil {
		a.Logger = o.logger
	} else {
		logger.Init(settings.Logging)
		a.Logger = logger.GetGlobalLogger()
	}

	a.retry = resilience.DefaultRetryConfig()
	a.retry.MaxAttempts = settings.Fetch.Attempts
	a.retry.InitialBackoff = settings.Fetch.InitialBackoff
	a.retry.MaxBackoff = settings.Fetch.MaxBackoff

	if err := a.initTelemetry(ctx, o.name); err != nil {
		_ = a.Shutdown(ctx)
		return nil, err
	}

	a.Registry = o.registry
	if a.Registry == nil {
		r, err := components.NewRegistry(component.WithNamespaces(settings.Registry.Namespaces...))
		if err != nil {
			return nil, err
		}
		a.Registry = r
	}
	return a, nil
}

func (a *App) initTelemetry(ctx context.Context, name string) error {
	v := version.Get().Short()
	if t := a.Settings.Tracing; t.Enabled {
		tp, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName:    name,
			ServiceVersion: v,
			Endpoint:       t.Endpoint,
			Insecure:       t.Insecure,
			SampleRate:     t.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		a.OnStop(tp.Shutdown)
	}
	if m := a.Settings.Metrics; m.Enabled {
		mp, err := observability.InitMeter(ctx, &observability.MeterConfig{
			ServiceName:    name,
			ServiceVersion: v,
			Endpoint:       m.Endpoint,
			Insecure:       m.Insecure,
			Interval:       m.Interval,
		})
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		a.OnStop(mp.Shutdown)
	}
	metrics, err := observability.NewPipelineMetrics(observability.Meter(name))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	a.Metrics = metrics
	return nil
}

// Dependencies returns what every component factory receives.
func (a *App) Dependencies() component.Dependencies {
	return component.Dependencies{
		Logger:     a.Logger,
		Metrics:    a.Metrics,
		HTTPClient: a.httpClient,
		Retry:      a.retry,
	}
}

// Resolver returns an endpoint resolver whose System.in and System.out are
// stdin and stdout.
func (a *App) Resolver(stdin io.Reader, stdout io.Writer) *endpoint.Resolver {
	return endpoint.NewResolver(
		endpoint.WithStdio(stdin, stdout),
		endpoint.WithHTTPClient(a.httpClient),
		endpoint.WithRetry(a.retry),
		endpoint.WithS3Settings(a.Settings.S3),
		endpoint.WithLogger(a.Logger.WithComponent("endpoint")),
	)
}

// Run builds doc and runs it to completion.
func (a *App) Run(ctx context.Context, doc *config.Document, stdin io.Reader, stdout io.Writer) (*dag.Result, error) {
	resolver := a.Resolver(stdin, stdout)
	defer func() { _ = resolver.Close() }()

	b := dag.NewBuilder(a.Registry,
		dag.WithOpener(resolver),
		dag.WithDependencies(a.Dependencies()),
		dag.WithStreamSettings(a.Settings.Stream),
		dag.WithLogger(a.Logger.WithComponent("dag")),
	)
	g, err := b.Build(ctx, doc)
	if err != nil {
		return nil, err
	}
	e := &dag.Engine{Metrics: a.Metrics, Logger: a.Logger.WithComponent("engine")}
	return e.Run(ctx, g)
}

// RunTask runs a finite task that is canceled on SIGINT or SIGTERM, then
// shuts the app down. The task error wins over a shutdown error.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	taskCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	taskErr := task(taskCtx)
	if err := a.Shutdown(context.Background()); err != nil && taskErr == nil {
		return err
	}
	return taskErr
}

// WaitForSignal blocks until an interrupt or termination signal or until
// ctx is done.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		return nil
	}
}

// Shutdown runs the stop hooks within the graceful timeout. It is safe to
// call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	hooks := a.onStop
	a.onStop = nil
	a.mu.Unlock()
	if len(hooks) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.gracefulTimeout)
	defer cancel()
	if err := runHooks(ctx, hooks); err != nil {
		a.Logger.Error("Shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
		return err
	}
	return nil
}
