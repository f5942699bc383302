// Package dag turns a pipeline document into a wired graph of stream
// components and runs it.
//
// Builder resolves every component through a component.Registry, connects
// them with segment channels or byte pipes depending on the producer's
// category, and attaches external sources and sinks opened by an
// endpoint.Opener. Engine then starts every component on its own goroutine:
// components are not scheduled by dependency level, they all run at once
// and pace each other through their bounded edges.
package dag
