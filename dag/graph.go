package dag

import (
	"errors"
	"fmt"
	"io"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// Graph is a wired pipeline: components in build order and the edges
// between them.
type Graph struct {
	order []string
	nodes map[string]component.StreamComponent
	Edges []Edge
}

// Edge connects a producer slot to a consumer slot. Source and
// Destination are set instead of From or To for external endpoints.
type Edge struct {
	From        string
	FromStream  string
	To          string
	ToStream    string
	Source      string
	Destination string
	Kind        stream.Kind

	link abortable
}

type abortable interface {
	Abort(err error)
}

func (e Edge) String() string {
	from := e.Source
	if from == "" {
		from = fmt.Sprintf("%s[%s]", e.From, e.FromStream)
	}
	to := e.Destination
	if to == "" {
		to = fmt.Sprintf("%s[%s]", e.To, e.ToStream)
	}
	return from + " -> " + to
}

func newGraph() *Graph {
	return &Graph{nodes: make(map[string]component.StreamComponent)}
}

func (g *Graph) add(c component.StreamComponent) {
	g.order = append(g.order, c.InstanceName())
	g.nodes[c.InstanceName()] = c
}

// Instance returns the component named name, or nil.
func (g *Graph) Instance(name string) component.StreamComponent {
	return g.nodes[name]
}

// Instances returns the components in build order.
func (g *Graph) Instances() []component.StreamComponent {
	out := make([]component.StreamComponent, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name])
	}
	return out
}

// Len returns the number of components.
func (g *Graph) Len() int { return len(g.order) }

// Abort fails every edge with err so that blocked readers and writers
// return.
func (g *Graph) Abort(err error) {
	for _, e := range g.Edges {
		if e.link != nil {
			e.link.Abort(err)
		}
	}
}

// Close releases external endpoints of a graph that will never run.
func (g *Graph) Close() error {
	var errs []error
	for _, e := range g.Edges {
		switch {
		case e.Source != "":
			if c, ok := e.link.(io.Closer); ok {
				errs = append(errs, c.Close())
			}
		case e.Destination != "":
			if o, ok := e.link.(stream.Output); ok {
				errs = append(errs, o.Terminate())
			}
		}
	}
	return errors.Join(errs...)
}

// BuildLevels uses Kahn's algorithm to group components by distance from
// the sources of the graph. Components within one level do not feed each
// other. Returns an error if a cycle is detected.
func BuildLevels(g *Graph) ([][]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string) // from -> [to...]

	for _, name := range g.order {
		inDegree[name] = 0
	}

	for _, e := range g.Edges {
		if e.From == "" || e.To == "" {
			continue
		}
		if _, ok := g.nodes[e.From]; !ok {
			return nil, fmt.Errorf("dag: edge references unknown instance %q", e.From)
		}
		if _, ok := g.nodes[e.To]; !ok {
			return nil, fmt.Errorf("dag: edge references unknown instance %q", e.To)
		}
		inDegree[e.To]++
		dependents[e.From] = append(dependents[e.From], e.To)
	}

	var queue []string
	for _, name := range g.order {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var levels [][]string
	visited := 0

	for len(queue) > 0 {
		levels = append(levels, queue)
		visited += len(queue)

		var next []string
		for _, name := range queue {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		queue = next
	}

	if visited != len(g.order) {
		return levels, fmt.Errorf("dag: cycle detected, processed %d of %d instances", visited, len(g.order))
	}

	return levels, nil
}
