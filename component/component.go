package component

import (
	"context"
	"fmt"

	"github.com/Pret-a-LLOD/Fintan/config"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// DefaultStream is the name of the default input and output slot.
const DefaultStream = ""

// StreamComponent is one node of a pipeline graph.
//
// Slots are mutated only while the graph is built. Start runs on its own
// goroutine, pulls from the input slots until they are exhausted, pushes
// to the output slots and terminates every output before returning. Fatal
// problems are returned; per-segment problems are logged and skipped.
type StreamComponent interface {
	InstanceName() string
	Class() string
	Category() Category

	Input(name string) stream.Input
	SetInput(name string, in stream.Input) error
	Output(name string) stream.Output
	SetOutput(name string, out stream.Output) error
	InputNames() []string
	OutputNames() []string
	// RequiresInput is false for components that produce data on their own.
	RequiresInput() bool

	Config() config.Node
	State() State
	Transition(to State) error

	Start(ctx context.Context) error
}

// Category is the structural kind of a component. It decides what its
// output edges carry and what inputs it accepts.
type Category int

const (
	// CategoryLoader parses serialized bytes into segments.
	CategoryLoader Category = iota
	// CategoryUpdater rewrites segments in place.
	CategoryUpdater
	// CategoryTransformer turns bytes into bytes.
	CategoryTransformer
	// CategoryWriter renders segments as bytes.
	CategoryWriter
)

func (c Category) String() string {
	switch c {
	case CategoryLoader:
		return "loader"
	case CategoryUpdater:
		return "updater"
	case CategoryTransformer:
		return "transformer"
	case CategoryWriter:
		return "writer"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// OutputKind is the edge kind a producer of this category needs.
func (c Category) OutputKind() stream.Kind {
	switch c {
	case CategoryLoader, CategoryUpdater:
		return stream.KindSegments
	default:
		return stream.KindBytes
	}
}

// InputKind is the edge kind a consumer of this category reads by default.
func (c Category) InputKind() stream.Kind {
	switch c {
	case CategoryUpdater, CategoryWriter:
		return stream.KindSegments
	default:
		return stream.KindBytes
	}
}

// State is a component lifecycle state. States advance one step at a time.
type State int

const (
	StateConstructed State = iota
	StateConfigured
	StateWired
	StateRunning
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateConfigured:
		return "configured"
	case StateWired:
		return "wired"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
