package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/config"
	"github.com/Pret-a-LLOD/Fintan/dag"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/observability"
	"github.com/Pret-a-LLOD/Fintan/server/endpoint"
)

// RunStatusTrailer reports "ok" or the failure of a run whose output was
// already streaming when it failed.
const RunStatusTrailer = "X-Fintan-Run-Status"

// Runner runs a pipeline document with the given System.in and System.out.
type Runner interface {
	Run(ctx context.Context, doc *config.Document, stdin io.Reader, stdout io.Writer) (*dag.Result, error)
}

// API serves the pipeline routes.
type API struct {
	runner   Runner
	registry *component.Registry
	loader   dag.DocumentLoader
	metrics  *Metrics
	log      *logger.Logger

	slots      chan struct{}
	runTimeout time.Duration
	active     atomic.Int64
}

// NewAPI creates the pipeline routes. At most cfg.MaxConcurrentRuns runs
// execute at once.
func NewAPI(cfg config.ServerSettings, runner Runner, registry *component.Registry, loader dag.DocumentLoader, metrics *Metrics, log *logger.Logger) *API {
	n := cfg.MaxConcurrentRuns
	if n <= 0 {
		n = 1
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &API{
		runner:     runner,
		registry:   registry,
		loader:     loader,
		metrics:    metrics,
		log:        log.WithComponent("api"),
		slots:      make(chan struct{}, n),
		runTimeout: cfg.RunTimeout,
	}
}

// Register mounts every route on engine.
func (a *API) Register(engine *gin.Engine) {
	engine.GET("/health", endpoint.Health("fintan", a.active.Load,
		endpoint.Check{Name: "pipelines", Fn: endpoint.DirCheck(a.loader.List)},
	))
	engine.GET("/metrics", endpoint.Metrics(a.metrics.Registry()))
	engine.GET("/version", endpoint.Version())

	api := engine.Group("/api")
	api.GET("/components", a.components)
	api.GET("/pipelines", a.pipelines)
	api.POST("/run/:pipeline", a.run)
}

type componentsResponse struct {
	Components []string `json:"components"`
	Namespaces []string `json:"namespaces"`
}

func (a *API) components(c *gin.Context) {
	RespondOK(c, componentsResponse{
		Components: a.registry.Names(),
		Namespaces: a.registry.Namespaces(),
	})
}

func (a *API) pipelines(c *gin.Context) {
	names, err := a.loader.List()
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	RespondOK(c, names)
}

func (a *API) run(c *gin.Context) {
	name := c.Param("pipeline")
	doc, err := a.loader.Load(name, c.QueryArray("param"))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	select {
	case a.slots <- struct{}{}:
		defer func() { <-a.slots }()
	default:
		a.metrics.runRejected()
		c.Header("Retry-After", "1")
		RespondWithError(c, apperrors.RateLimited("too many pipeline runs in progress"))
		return
	}

	body, err := requestBody(c.Request)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	defer func() { _ = body.Close() }()

	ctx := c.Request.Context()
	if a.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.runTimeout)
		defer cancel()
	}

	a.active.Add(1)
	a.metrics.runStarted()
	start := time.Now()
	out := &runWriter{w: c.Writer}
	c.Header("Trailer", RunStatusTrailer)

	_, err = a.runner.Run(ctx, doc, body, out)

	status := observability.StatusOK
	if err != nil {
		status = observability.StatusFailed
	}
	a.active.Add(-1)
	a.metrics.runFinished(name, status, time.Since(start))

	if err != nil {
		a.log.WithContext(ctx).Warn("Pipeline run failed", logger.Fields(
			"pipeline", name, logger.FieldError, err.Error()))
		if !out.started() {
			c.Writer.Header().Del("Trailer")
			if errors.Is(err, context.DeadlineExceeded) {
				err = apperrors.Timeout("pipeline " + name)
			}
			RespondWithError(c, err)
			return
		}
		c.Writer.Header().Set(RunStatusTrailer, "failed: "+err.Error())
		return
	}
	if !out.started() {
		c.Status(http.StatusOK)
		c.Writer.WriteHeaderNow()
	}
	c.Writer.Header().Set(RunStatusTrailer, "ok")
}

// requestBody returns the request body, decompressed when it is gzip.
func requestBody(r *http.Request) (io.ReadCloser, error) {
	enc := strings.ToLower(r.Header.Get("Content-Encoding"))
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if enc != "gzip" && !strings.HasPrefix(ct, "application/gzip") {
		return r.Body, nil
	}
	zr, err := gzip.NewReader(r.Body)
	if err != nil {
		return nil, apperrors.InvalidInput("body", "request body is not valid gzip")
	}
	return zr, nil
}

// runWriter is System.out of an API run. The status line is sent with the
// first byte of output.
type runWriter struct {
	mu    sync.Mutex
	w     gin.ResponseWriter
	wrote bool
}

func (r *runWriter) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.wrote {
		r.wrote = true
		if r.w.Header().Get("Content-Type") == "" {
			r.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		r.w.WriteHeader(http.StatusOK)
	}
	n, err := r.w.Write(p)
	r.w.Flush()
	return n, err
}

func (r *runWriter) started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wrote
}
