// Package components registers the built-in component classes.
package components

import (
	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/components/genericio"
	"github.com/Pret-a-LLOD/Fintan/components/load"
	"github.com/Pret-a-LLOD/Fintan/components/rdf"
	"github.com/Pret-a-LLOD/Fintan/components/text"
	"github.com/Pret-a-LLOD/Fintan/components/write"
)

// RegisterAll adds every built-in component class to r.
func RegisterAll(r *component.Registry) error {
	for _, register := range []func(*component.Registry) error{
		load.Register,
		text.Register,
		rdf.Register,
		genericio.Register,
		write.Register,
	} {
		if err := register(r); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding every built-in class.
func NewRegistry(opts ...component.RegistryOption) (*component.Registry, error) {
	r := component.NewRegistry(opts...)
	if err := RegisterAll(r); err != nil {
		return nil, err
	}
	return r, nil
}
