// Package component defines the unit of concurrent work in a Fintan
// pipeline and the registry that builds components from configuration.
//
// A StreamComponent has named input and output slots (the default slot is
// DefaultStream, the empty name), a read-only configuration Node and a Start
// method that runs until its inputs are exhausted. Concrete components embed
// *Base, which owns the slot maps and the lifecycle state:
//
//	Constructed -> Configured -> Wired -> Running -> Draining -> Terminated
//
// Components are created by a Registry from their "class" name:
//
//	r := component.NewRegistry()
//	r.MustRegister("fintan.load.RDFStreamLoader", NewRDFStreamLoader)
//	c, err := r.Build(config.Node{"class": "RDFStreamLoader"}, deps)
//
// Unqualified names are looked up under each namespace in order, then with
// a "Factory" suffix.
package component
