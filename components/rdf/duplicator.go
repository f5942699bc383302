// Package rdf holds updaters: components that read and write segment
// streams.
package rdf

import (
	"context"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/segment"
)

// Registered class names. The updater is only known under its factory
// name, so "RDFUpdater" resolves through the suffix fallback.
const (
	RDFStreamDuplicatorClass = "fintan.rdf.RDFStreamDuplicator"
	RDFUpdaterFactoryClass   = "fintan.rdf.RDFUpdaterFactory"
)

// RDFStreamDuplicator copies every segment of its default input to each
// connected output.
type RDFStreamDuplicator struct {
	*component.Base
}

// NewRDFStreamDuplicator is the RDFStreamDuplicator factory.
func NewRDFStreamDuplicator(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	return &RDFStreamDuplicator{
		Base: component.NewBase(spec, component.CategoryUpdater, deps, component.OnlyDefaultInput()),
	}, nil
}

func (d *RDFStreamDuplicator) Start(ctx context.Context) error {
	in := d.Input(component.DefaultStream)
	outputs := d.OutputNames()
	err := d.EachSegment(ctx, component.DefaultStream, in, func(s segment.Segment) error {
		for _, name := range outputs {
			if err := d.Emit(ctx, name, s.Clone()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.MarkDraining()
	return d.TerminateOutputs()
}

// Register adds the updaters to r.
func Register(r *component.Registry) error {
	if err := r.Register(RDFStreamDuplicatorClass, NewRDFStreamDuplicator); err != nil {
		return err
	}
	return r.Register(RDFUpdaterFactoryClass, NewRDFUpdater)
}
