package testutil

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/config"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/segment"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// Registered class names.
const (
	EchoLoaderClass = "fintan.load.EchoLoader"
	EchoWriterClass = "fintan.write.EchoWriter"
	RelayClass      = "fintan.rdf.Relay"
	LinesClass      = "fintan.genericio.Lines"
)

// NewRegistry returns a registry holding the test components.
func NewRegistry() *component.Registry {
	r := component.NewRegistry()
	r.MustRegister(EchoLoaderClass, NewEchoLoader)
	r.MustRegister(EchoWriterClass, NewEchoWriter)
	r.MustRegister(RelayClass, NewRelay)
	r.MustRegister(LinesClass, NewLines)
	return r
}

// TestDependencies are quiet factory dependencies.
func TestDependencies() component.Dependencies {
	return component.Dependencies{Logger: logger.Nop()}
}

// EchoLoader turns every non-blank input line into a segment labelled with
// the line, per named stream.
type EchoLoader struct {
	*component.Base
}

// NewEchoLoader is the EchoLoader factory.
func NewEchoLoader(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	return &EchoLoader{Base: component.NewBase(spec, component.CategoryLoader, deps)}, nil
}

func (l *EchoLoader) Start(ctx context.Context) error {
	return component.ForEachStream(ctx, l.Base, func(ctx context.Context, name string, in stream.Input, _ stream.Output) error {
		sc := bufio.NewScanner(in.Reader())
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if err := l.Emit(ctx, name, segment.Segment{Label: line}); err != nil {
				return err
			}
		}
		return sc.Err()
	})
}

// EchoWriter writes the label of every segment of its default input as
// one line.
type EchoWriter struct {
	*component.Base
}

// NewEchoWriter is the EchoWriter factory.
func NewEchoWriter(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	return &EchoWriter{Base: component.NewBase(spec, component.CategoryWriter, deps, component.OnlyDefaultInput())}, nil
}

func (w *EchoWriter) Start(ctx context.Context) error {
	return component.ForEachStream(ctx, w.Base, func(ctx context.Context, name string, in stream.Input, out stream.Output) error {
		bw := bufio.NewWriter(w.Writer(ctx, out))
		err := w.EachSegment(ctx, name, in, func(s segment.Segment) error {
			_, err := bw.WriteString(s.Label + "\n")
			return err
		})
		if err != nil {
			return err
		}
		return bw.Flush()
	})
}

// Relay copies segments from each named input to the same-named output.
// With "failAfter" set it fails after forwarding that many segments.
type Relay struct {
	*component.Base
	failAfter int
}

// NewRelay is the Relay factory.
func NewRelay(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	return &Relay{
		Base:      component.NewBase(spec, component.CategoryUpdater, deps),
		failAfter: spec.Node.Int("failAfter", -1),
	}, nil
}

func (r *Relay) Start(ctx context.Context) error {
	var (
		mu sync.Mutex
		n  int
	)
	return component.ForEachStream(ctx, r.Base, func(ctx context.Context, name string, in stream.Input, _ stream.Output) error {
		return r.EachSegment(ctx, name, in, func(s segment.Segment) error {
			mu.Lock()
			if r.failAfter >= 0 && n >= r.failAfter {
				mu.Unlock()
				return fmt.Errorf("relay %s: failing after %d segments", r.InstanceName(), n)
			}
			n++
			mu.Unlock()
			return r.Emit(ctx, name, s)
		})
	})
}

// Lines writes the "lines" list of its configuration to its default output
// without reading any input.
type Lines struct {
	*component.Base
	lines []string
}

// NewLines is the Lines factory.
func NewLines(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	return &Lines{
		Base:  component.NewBase(spec, component.CategoryTransformer, deps, component.OptionalInput(), component.OnlyDefaultOutput()),
		lines: spec.Node.StringSlice("lines"),
	}, nil
}

func (l *Lines) Start(ctx context.Context) error {
	out := l.Output(component.DefaultStream)
	for _, line := range l.lines {
		if _, err := io.WriteString(l.Writer(ctx, out), line+"\n"); err != nil {
			return err
		}
	}
	return out.Terminate()
}

// MemoryOpener serves inputs from strings and captures outputs in memory.
type MemoryOpener struct {
	mu      sync.Mutex
	inputs  map[string]string
	outputs map[string]*memoryOutput
}

// NewMemoryOpener creates an opener serving inputs.
func NewMemoryOpener(inputs map[string]string) *MemoryOpener {
	return &MemoryOpener{inputs: inputs, outputs: make(map[string]*memoryOutput)}
}

// OpenInput returns the configured content of ref.
func (m *MemoryOpener) OpenInput(_ context.Context, ref string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.inputs[ref]
	if !ok {
		return nil, fmt.Errorf("no such input %q", ref)
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

// OpenOutput captures everything written to ref.
func (m *MemoryOpener) OpenOutput(_ context.Context, ref string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &memoryOutput{}
	m.outputs[ref] = o
	return o, nil
}

// Output returns what was written to ref so far.
func (m *MemoryOpener) Output(ref string) string {
	m.mu.Lock()
	o := m.outputs[ref]
	m.mu.Unlock()
	if o == nil {
		return ""
	}
	return o.String()
}

// Closed reports whether the output ref was closed.
func (m *MemoryOpener) Closed(ref string) bool {
	m.mu.Lock()
	o := m.outputs[ref]
	m.mu.Unlock()
	if o == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

type memoryOutput struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (o *memoryOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, io.ErrClosedPipe
	}
	return o.buf.Write(p)
}

func (o *memoryOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

func (o *memoryOutput) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}

// Doc builds a pipeline document from an inline JSON string.
func Doc(raw string) (*config.Document, error) {
	return config.ParseDocument([]byte(raw), "inline.json", nil)
}
