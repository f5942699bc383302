package config

import (
	"fmt"
	"time"

	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/validation"
)

// DefaultNamespaces are the registry prefixes tried, in order, when a
// component class is not found under its literal name.
var DefaultNamespaces = []string{
	"fintan.core",
	"fintan.genericio",
	"fintan.load",
	"fintan.rdf",
	"fintan.write",
	"fintan.text",
}

// Settings holds process-level options shared by every pipeline run.
type Settings struct {
	Logging  logger.Config    `mapstructure:"logging"`
	Stream   StreamSettings   `mapstructure:"stream"`
	Registry RegistrySettings `mapstructure:"registry"`
	Fetch    FetchSettings    `mapstructure:"fetch"`
	Metrics  MetricsSettings  `mapstructure:"metrics"`
	Tracing  TracingSettings  `mapstructure:"tracing"`
	S3       S3Settings       `mapstructure:"s3"`
	Server   ServerSettings   `mapstructure:"server"`
}

// StreamSettings sizes the edges the graph builder creates.
type StreamSettings struct {
	// Capacity of every segment handoff channel.
	Capacity int `mapstructure:"capacity"`
	// PipeBuffer is the write buffer of every byte pipe, in bytes.
	PipeBuffer int `mapstructure:"pipe_buffer"`
}

// RegistrySettings controls component class resolution.
type RegistrySettings struct {
	Namespaces []string `mapstructure:"namespaces"`
}

// FetchSettings controls how remote inputs are fetched.
type FetchSettings struct {
	Attempts       int           `mapstructure:"attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// MetricsSettings enables OTLP metric export.
type MetricsSettings struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	Insecure bool          `mapstructure:"insecure"`
	Interval time.Duration `mapstructure:"interval"`
}

// TracingSettings enables OTLP trace export.
type TracingSettings struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	Insecure   bool    `mapstructure:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultS3Region is used when no region is configured.
const DefaultS3Region = "us-east-1"

// S3Settings configures access to s3:// inputs and outputs. Empty keys fall
// back to the default AWS credential chain.
type S3Settings struct {
	Region string `mapstructure:"region"`
	// Endpoint is a custom S3-compatible endpoint (e.g. MinIO).
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// ServerSettings configures `fintan serve`.
type ServerSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// PipelinesDir holds the documents served under /api/run/:pipeline.
	PipelinesDir string        `mapstructure:"pipelines_dir"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// RunTimeout bounds one pipeline run; zero means no limit.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	// MaxBodySize limits request bodies, e.g. "64MB".
	MaxBodySize string `mapstructure:"max_body_size"`
	// MaxConcurrentRuns caps parallel runs; further requests get 429.
	MaxConcurrentRuns int `mapstructure:"max_concurrent_runs"`
}

// ApplyDefaults fills zero values.
func (s *Settings) ApplyDefaults() {
	s.Logging.ApplyDefaults()
	if s.Stream.Capacity <= 0 {
		s.Stream.Capacity = 100
	}
	if s.Stream.PipeBuffer <= 0 {
		s.Stream.PipeBuffer = 64 * 1024
	}
	if len(s.Registry.Namespaces) == 0 {
		s.Registry.Namespaces = append([]string(nil), DefaultNamespaces...)
	}
	if s.Fetch.Attempts <= 0 {
		s.Fetch.Attempts = 3
	}
	if s.Fetch.InitialBackoff <= 0 {
		s.Fetch.InitialBackoff = 200 * time.Millisecond
	}
	if s.Fetch.MaxBackoff <= 0 {
		s.Fetch.MaxBackoff = 5 * time.Second
	}
	if s.Fetch.Timeout <= 0 {
		s.Fetch.Timeout = 30 * time.Second
	}
	if s.Metrics.Endpoint == "" {
		s.Metrics.Endpoint = "localhost:4318"
	}
	if s.Metrics.Interval <= 0 {
		s.Metrics.Interval = 15 * time.Second
	}
	if s.Tracing.Endpoint == "" {
		s.Tracing.Endpoint = "localhost:4318"
	}
	if s.Tracing.SampleRate <= 0 {
		s.Tracing.SampleRate = 1.0
	}
	if s.S3.Region == "" {
		s.S3.Region = DefaultS3Region
	}
	if s.Server.Port == 0 {
		s.Server.Port = 8080
	}
	if s.Server.PipelinesDir == "" {
		s.Server.PipelinesDir = "pipelines"
	}
	if s.Server.ReadTimeout <= 0 {
		s.Server.ReadTimeout = 30 * time.Second
	}
	if s.Server.IdleTimeout <= 0 {
		s.Server.IdleTimeout = 120 * time.Second
	}
	if s.Server.MaxBodySize == "" {
		s.Server.MaxBodySize = "64MB"
	}
	if s.Server.MaxConcurrentRuns <= 0 {
		s.Server.MaxConcurrentRuns = 4
	}
}

// namespacePattern matches dotted registry prefixes such as fintan.rdf.
const namespacePattern = `^[A-Za-z_]\w*(\.[A-Za-z_]\w*)*$`

// Validate checks settings after defaults were applied and reports every
// invalid field at once.
func (s *Settings) Validate() error {
	if err := s.Logging.Validate(); err != nil {
		return err
	}
	v := validation.New().
		Min("stream.capacity", s.Stream.Capacity, 1).
		Min("stream.pipe_buffer", s.Stream.PipeBuffer, 16).
		Min("fetch.attempts", s.Fetch.Attempts, 1).
		Custom(s.Tracing.SampleRate > 0 && s.Tracing.SampleRate <= 1, "tracing.sample_rate",
			fmt.Sprintf("must be within (0, 1] (got: %v)", s.Tracing.SampleRate)).
		Range("server.port", s.Server.Port, 0, 65535).
		Min("server.max_concurrent_runs", s.Server.MaxConcurrentRuns, 1).
		Custom(s.Server.RunTimeout >= 0, "server.run_timeout", "must be non-negative").
		Custom((s.S3.AccessKey == "") == (s.S3.SecretKey == ""), "s3.secret_key", "must be set together with s3.access_key")
	if s.Metrics.Enabled {
		v.Required("metrics.endpoint", s.Metrics.Endpoint)
	}
	for i, ns := range s.Registry.Namespaces {
		v.Pattern(fmt.Sprintf("registry.namespaces[%d]", i), ns, namespacePattern)
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// LoadSettings loads, defaults and validates Settings.
func LoadSettings(opts ...LoaderOption) (*Settings, error) {
	var s Settings
	if err := LoadConfig(&s, opts...); err != nil {
		return nil, err
	}
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
