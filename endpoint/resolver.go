package endpoint

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/config"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/resilience"
)

// Opener is what the graph builder needs from a Resolver.
type Opener interface {
	OpenInput(ctx context.Context, ref string) (io.ReadCloser, error)
	OpenOutput(ctx context.Context, ref string) (io.WriteCloser, error)
}

// Resolver opens endpoint references. It is safe for concurrent use.
type Resolver struct {
	mu            sync.Mutex
	stdin         io.Reader
	stdout        io.Writer
	stdinClaimed  bool
	stdoutClaimed bool

	client *http.Client
	retry  resilience.RetryConfig
	s3     *component.Lazy[ObjectStore]
	log    *logger.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithStdio replaces the process stdio streams behind System.in and System.out.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(r *Resolver) {
		r.stdin = in
		r.stdout = out
	}
}

// WithHTTPClient sets the client used for http(s) inputs.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithRetry sets the retry policy for http(s) inputs.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(r *Resolver) { r.retry = cfg }
}

// WithS3Settings connects s3:// references with the given settings on first use.
func WithS3Settings(cfg config.S3Settings) Option {
	return func(r *Resolver) {
		r.s3 = component.NewLazy("s3", func(ctx context.Context) (ObjectStore, error) {
			c, err := NewS3Client(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		})
	}
}

// WithObjectStore serves s3:// references from store.
func WithObjectStore(store ObjectStore) Option {
	return func(r *Resolver) {
		r.s3 = component.NewLazy("s3", func(context.Context) (ObjectStore, error) {
			return store, nil
		})
	}
}

// WithLogger sets the resolver's logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// NewResolver creates a Resolver bound to os.Stdin and os.Stdout.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		client: http.DefaultClient,
		retry:  resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.s3 == nil {
		WithS3Settings(config.S3Settings{Region: config.DefaultS3Region})(r)
	}
	if r.log == nil {
		r.log = logger.WithComponent("endpoint")
	}
	return r
}

// OpenInput opens ref for reading.
func (r *Resolver) OpenInput(ctx context.Context, ref string) (io.ReadCloser, error) {
	if ref == config.StdinRef {
		if err := r.claim(&r.stdinClaimed, ref); err != nil {
			return nil, err
		}
		return io.NopCloser(r.stdin), nil
	}

	var (
		rc  io.ReadCloser
		err error
	)
	switch {
	case isS3(ref):
		rc, err = r.openS3(ctx, ref)
	case isHTTP(ref):
		rc, err = r.fetch(ctx, ref)
	default:
		rc, err = openFile(ref)
	}
	if err != nil {
		return nil, err
	}
	r.log.Debug("Input opened", logger.Fields(logger.FieldRef, ref))

	if !isGzip(ref) {
		return rc, nil
	}
	zr, err := gzip.NewReader(rc)
	if err != nil {
		_ = rc.Close()
		return nil, apperrors.Resource(ref, err)
	}
	return &gzipReader{Reader: zr, src: rc}, nil
}

// OpenOutput opens ref for writing, truncating existing files.
func (r *Resolver) OpenOutput(ctx context.Context, ref string) (io.WriteCloser, error) {
	if ref == config.StdoutRef {
		if err := r.claim(&r.stdoutClaimed, ref); err != nil {
			return nil, err
		}
		return nopWriteCloser{r.stdout}, nil
	}

	var (
		wc  io.WriteCloser
		err error
	)
	switch {
	case isHTTP(ref):
		return nil, apperrors.ConfigInvalid("URLs cannot be used as output: " + ref)
	case isS3(ref):
		wc, err = r.createS3(ctx, ref)
	default:
		wc, err = createFile(ref)
	}
	if err != nil {
		return nil, err
	}
	r.log.Debug("Output opened", logger.Fields(logger.FieldRef, ref))

	if !isGzip(ref) {
		return wc, nil
	}
	return &gzipWriter{Writer: gzip.NewWriter(wc), dst: wc}, nil
}

// Close releases the S3 client if one was created.
func (r *Resolver) Close() error {
	return r.s3.Close()
}

func (r *Resolver) claim(flag *bool, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if *flag {
		return apperrors.ConfigInvalid(ref + " can only be used once per pipeline")
	}
	*flag = true
	return nil
}

func isS3(ref string) bool { return strings.HasPrefix(ref, "s3://") }

func isHTTP(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func isGzip(ref string) bool { return strings.HasSuffix(ref, ".gz") }

type gzipReader struct {
	*gzip.Reader
	src io.Closer
}

func (g *gzipReader) Close() error {
	err := g.Reader.Close()
	if cerr := g.src.Close(); err == nil {
		err = cerr
	}
	return err
}

type gzipWriter struct {
	*gzip.Writer
	dst io.Closer
}

func (g *gzipWriter) Close() error {
	err := g.Writer.Close()
	if cerr := g.dst.Close(); err == nil {
		err = cerr
	}
	return err
}

// nopWriteCloser leaves the process stdout open after a pipeline finishes.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
