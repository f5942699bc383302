// Package genericio holds transformers that move bytes between pipeline
// streams and external systems: databases, commands and web services.
package genericio

import (
	"context"
	"io"

	"github.com/Pret-a-LLOD/Fintan/component"
)

// Registered class names.
const (
	IOStreamDuplicatorClass           = "fintan.genericio.IOStreamDuplicator"
	SQLStreamTransformerClass         = "fintan.genericio.SQLStreamTransformer"
	CommandStreamTransformerClass     = "fintan.genericio.CommandStreamTransformer"
	HTTPServiceStreamTransformerClass = "fintan.genericio.HTTPServiceStreamTransformer"
)

const copyBufferSize = 8192

// IOStreamDuplicator copies the bytes of its default input to every
// connected output.
type IOStreamDuplicator struct {
	*component.Base
}

// NewIOStreamDuplicator is the IOStreamDuplicator factory.
func NewIOStreamDuplicator(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	return &IOStreamDuplicator{
		Base: component.NewBase(spec, component.CategoryTransformer, deps, component.OnlyDefaultInput()),
	}, nil
}

func (d *IOStreamDuplicator) Start(ctx context.Context) error {
	names := d.OutputNames()
	writers := make([]io.Writer, 0, len(names))
	for _, name := range names {
		writers = append(writers, d.Writer(ctx, d.Output(name)))
	}
	in := d.Input(component.DefaultStream)
	if _, err := io.CopyBuffer(io.MultiWriter(writers...), in.Reader(), make([]byte, copyBufferSize)); err != nil {
		return err
	}
	d.MarkDraining()
	return d.TerminateOutputs()
}

// Register adds the generic I/O transformers to r.
func Register(r *component.Registry) error {
	for name, f := range map[string]component.Factory{
		IOStreamDuplicatorClass:           NewIOStreamDuplicator,
		SQLStreamTransformerClass:         NewSQLStreamTransformer,
		CommandStreamTransformerClass:     NewCommandStreamTransformer,
		HTTPServiceStreamTransformerClass: NewHTTPServiceStreamTransformer,
	} {
		if err := r.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}
