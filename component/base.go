package component

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"

	"github.com/Pret-a-LLOD/Fintan/config"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/observability"
	"github.com/Pret-a-LLOD/Fintan/segment"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// Base implements the slot and lifecycle half of StreamComponent.
// Concrete components embed *Base and add Start.
type Base struct {
	mu       sync.RWMutex
	instance string
	class    string
	category Category
	node     config.Node
	state    State
	inputs   map[string]stream.Input
	outputs  map[string]stream.Output

	onlyDefaultInput  bool
	onlyDefaultOutput bool
	optionalInput     bool
	accepts           []stream.Kind

	log     *logger.Logger
	metrics *observability.PipelineMetrics
	dropped sync.Map
}

// Option customizes a Base.
type Option func(*Base)

// OnlyDefaultInput rejects named input slots.
func OnlyDefaultInput() Option {
	return func(b *Base) { b.onlyDefaultInput = true }
}

// OnlyDefaultOutput rejects named output slots.
func OnlyDefaultOutput() Option {
	return func(b *Base) { b.onlyDefaultOutput = true }
}

// AcceptInputs replaces the input kinds the category accepts.
func AcceptInputs(kinds ...stream.Kind) Option {
	return func(b *Base) { b.accepts = kinds }
}

// OptionalInput marks a component that may run without any input.
func OptionalInput() Option {
	return func(b *Base) { b.optionalInput = true }
}

// NewBase creates a Base in state Constructed.
func NewBase(spec Spec, category Category, deps Dependencies, opts ...Option) *Base {
	log := deps.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	b := &Base{
		instance: spec.Instance,
		class:    spec.Class,
		category: category,
		node:     spec.Node,
		state:    StateConstructed,
		inputs:   make(map[string]stream.Input),
		outputs:  make(map[string]stream.Output),
		accepts:  []stream.Kind{category.InputKind()},
		metrics:  deps.Metrics,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = log.WithComponent(spec.Class).WithFields(logger.Fields(logger.FieldInstance, spec.Instance))
	return b
}

func (b *Base) InstanceName() string { return b.instance }
func (b *Base) Class() string        { return b.class }
func (b *Base) Category() Category   { return b.category }
func (b *Base) Config() config.Node  { return b.node }
func (b *Base) RequiresInput() bool  { return !b.optionalInput }

// Logger returns a logger tagged with the component class and instance.
func (b *Base) Logger() *logger.Logger { return b.log }

// Metrics returns the pipeline metrics, possibly nil.
func (b *Base) Metrics() *observability.PipelineMetrics { return b.metrics }

// State returns the current lifecycle state.
func (b *Base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Transition advances the lifecycle by exactly one step.
func (b *Base) Transition(to State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if to != b.state+1 {
		return apperrors.New(apperrors.ErrCodeInternal,
			fmt.Sprintf("component '%s': invalid state transition %s -> %s", b.instance, b.state, to), http.StatusInternalServerError)
	}
	b.state = to
	return nil
}

// MarkDraining moves a running component to Draining. It does nothing in
// any other state.
func (b *Base) MarkDraining() {
	b.mu.Lock()
	if b.state == StateRunning {
		b.state = StateDraining
	}
	b.mu.Unlock()
}

// AcceptsInput reports whether an input edge of kind k may be attached.
func (b *Base) AcceptsInput(k stream.Kind) bool {
	return slices.Contains(b.accepts, k)
}

// Input returns the input attached to slot name, or nil.
func (b *Base) Input(name string) stream.Input {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.inputs[name]
}

// Output returns the output attached to slot name, or nil.
func (b *Base) Output(name string) stream.Output {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.outputs[name]
}

// SetInput attaches in to slot name.
func (b *Base) SetInput(name string, in stream.Input) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkSlotLocked(name, b.onlyDefaultInput, "input"); err != nil {
		return err
	}
	if _, taken := b.inputs[name]; taken {
		return apperrors.Wiring(b.instance, name, "input slot is already occupied")
	}
	if !slices.Contains(b.accepts, in.Kind()) {
		return apperrors.Wiring(b.instance, name,
			fmt.Sprintf("%s component cannot read a %s stream", b.category, in.Kind()))
	}
	b.inputs[name] = in
	return nil
}

// SetOutput attaches out to slot name.
func (b *Base) SetOutput(name string, out stream.Output) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkSlotLocked(name, b.onlyDefaultOutput, "output"); err != nil {
		return err
	}
	if _, taken := b.outputs[name]; taken {
		return apperrors.Wiring(b.instance, name, "output slot is already occupied")
	}
	if out.Kind() != b.category.OutputKind() {
		return apperrors.Wiring(b.instance, name,
			fmt.Sprintf("%s component cannot write a %s stream", b.category, out.Kind()))
	}
	b.outputs[name] = out
	return nil
}

func (b *Base) checkSlotLocked(name string, onlyDefault bool, direction string) error {
	if b.state >= StateRunning {
		return apperrors.Wiring(b.instance, name, "slots cannot change once the component is running")
	}
	if onlyDefault && name != DefaultStream {
		return apperrors.Wiring(b.instance, name,
			fmt.Sprintf("component supports only the default %s stream", direction))
	}
	return nil
}

// InputNames lists connected input slots in sorted order.
func (b *Base) InputNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedKeys(b.inputs)
}

// OutputNames lists connected output slots in sorted order.
func (b *Base) OutputNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedKeys(b.outputs)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Emit writes seg to output slot name. Without a connected output the
// segment is dropped and the first drop per slot is logged.
func (b *Base) Emit(ctx context.Context, name string, seg segment.Segment) error {
	out := b.Output(name)
	if out == nil {
		if _, seen := b.dropped.LoadOrStore(name, true); !seen {
			b.log.Info("output stream is not connected, its segments are dropped",
				logger.Fields(logger.FieldStream, name))
		}
		b.metrics.RecordDropped(ctx, b.instance, name, 1)
		return nil
	}
	h := out.Segments()
	if h == nil {
		return apperrors.Wiring(b.instance, name, "output is not a segment stream")
	}
	if err := h.Write(ctx, seg); err != nil {
		return err
	}
	b.metrics.RecordSegmentWritten(ctx, b.instance, name)
	return nil
}

// EachSegment calls fn for every segment of in until the upstream producer
// terminates the channel.
func (b *Base) EachSegment(ctx context.Context, name string, in stream.Input, fn func(segment.Segment) error) error {
	h := in.Segments()
	if h == nil {
		return apperrors.Wiring(b.instance, name, "input is not a segment stream")
	}
	for {
		seg, ok, err := h.Read(ctx)
		if err != nil {
			return err
		}
		if !ok {
			if !h.CanRead() {
				return nil
			}
			continue
		}
		b.metrics.RecordSegmentRead(ctx, b.instance, name)
		if err := fn(seg); err != nil {
			return err
		}
	}
}

// Writer returns the byte writer of out, counting bytes into the metrics.
func (b *Base) Writer(ctx context.Context, out stream.Output) io.Writer {
	return &countingWriter{ctx: ctx, w: out.Writer(), b: b}
}

type countingWriter struct {
	ctx context.Context
	w   io.Writer
	b   *Base
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.b.metrics.RecordBytes(c.ctx, c.b.instance, int64(n))
	return n, err
}

// TerminateOutputs terminates every connected output and returns the first
// error.
func (b *Base) TerminateOutputs() error {
	var first error
	for _, name := range b.OutputNames() {
		if err := b.Output(name).Terminate(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
