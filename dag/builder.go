package dag

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/config"
	"github.com/Pret-a-LLOD/Fintan/endpoint"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/observability"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// Builder turns pipeline documents into wired graphs.
type Builder struct {
	registry   *component.Registry
	opener     endpoint.Opener
	deps       component.Dependencies
	capacity   int
	pipeBuffer int
	log        *logger.Logger
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithOpener sets how external sources and sinks are opened.
func WithOpener(o endpoint.Opener) BuilderOption {
	return func(b *Builder) { b.opener = o }
}

// WithDependencies sets the dependencies handed to every factory.
func WithDependencies(d component.Dependencies) BuilderOption {
	return func(b *Builder) { b.deps = d }
}

// WithStreamSettings sizes the edges the builder creates.
func WithStreamSettings(s config.StreamSettings) BuilderOption {
	return func(b *Builder) {
		b.capacity = s.Capacity
		b.pipeBuffer = s.PipeBuffer
	}
}

// WithLogger sets the builder's logger.
func WithLogger(l *logger.Logger) BuilderOption {
	return func(b *Builder) { b.log = l }
}

// NewBuilder creates a Builder resolving classes through registry.
func NewBuilder(registry *component.Registry, opts ...BuilderOption) *Builder {
	b := &Builder{
		registry:   registry,
		capacity:   stream.DefaultCapacity,
		pipeBuffer: stream.DefaultPipeBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.WithComponent("dag")
	}
	if b.deps.Logger == nil {
		b.deps.Logger = b.log
	}
	if b.opener == nil {
		b.opener = endpoint.NewResolver(endpoint.WithLogger(b.log))
	}
	return b
}

// Build validates doc, constructs its components and connects them. On
// error every endpoint opened so far is released.
func (b *Builder) Build(ctx context.Context, doc *config.Document) (g *Graph, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineBuild)
	defer func() {
		if err != nil {
			observability.SetSpanError(ctx, err)
		}
		span.End()
	}()

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	g = newGraph()
	defer func() {
		if err != nil {
			_ = g.Close()
			g = nil
		}
	}()

	if doc.HasPipeline() {
		if err := b.buildPipeline(ctx, g, doc); err != nil {
			return g, err
		}
	}
	if doc.HasComponents() {
		if err := b.buildComponents(ctx, g, doc); err != nil {
			return g, err
		}
	}
	if doc.HasStreams() {
		if err := b.buildStreams(ctx, g, doc); err != nil {
			return g, err
		}
	}
	if err := validateLinkState(g); err != nil {
		return g, err
	}
	if _, err := BuildLevels(g); err != nil {
		b.log.Warn("Pipeline contains a cycle", logger.Fields(logger.FieldError, err.Error()))
	}
	for _, c := range g.Instances() {
		if err := c.Transition(component.StateWired); err != nil {
			return g, err
		}
	}

	span.SetAttributes(attribute.Int(observability.AttrComponents, g.Len()))
	b.log.Info("Pipeline built", logger.Fields(
		logger.FieldCount, g.Len(),
		"edges", len(g.Edges),
	))
	return g, nil
}

// buildPipeline chains the entries of doc.Pipeline through their default
// slots. Entries without componentInstance get a generated one.
func (b *Builder) buildPipeline(ctx context.Context, g *Graph, doc *config.Document) error {
	var prev component.StreamComponent
	for i, node := range doc.Pipeline {
		c, err := b.add(g, node)
		if err != nil {
			return fmt.Errorf("pipeline[%d]: %w", i, err)
		}
		if prev == nil {
			if doc.HasInput() {
				if err := b.attachSource(ctx, g, doc.Input, c, component.DefaultStream); err != nil {
					return err
				}
			}
		} else if err := b.connect(g, prev, component.DefaultStream, c, component.DefaultStream); err != nil {
			return err
		}
		prev = c
	}
	if prev != nil && doc.HasOutput() {
		return b.attachDestination(ctx, g, prev, component.DefaultStream, doc.Output)
	}
	return nil
}

// buildComponents constructs doc.Components, which must name their
// instances. Without a pipeline section the document's input and output
// go to the first and last component.
func (b *Builder) buildComponents(ctx context.Context, g *Graph, doc *config.Document) error {
	built := make([]component.StreamComponent, 0, len(doc.Components))
	for i, node := range doc.Components {
		if node.Instance() == "" {
			return apperrors.ConfigInvalid(fmt.Sprintf("components[%d]: every component must define a 'componentInstance'", i))
		}
		c, err := b.add(g, node)
		if err != nil {
			return fmt.Errorf("components[%d]: %w", i, err)
		}
		built = append(built, c)
	}
	if doc.HasPipeline() || len(built) == 0 {
		return nil
	}
	if doc.HasInput() {
		if err := b.attachSource(ctx, g, doc.Input, built[0], component.DefaultStream); err != nil {
			return err
		}
	}
	if doc.HasOutput() {
		return b.attachDestination(ctx, g, built[len(built)-1], component.DefaultStream, doc.Output)
	}
	return nil
}

func (b *Builder) buildStreams(ctx context.Context, g *Graph, doc *config.Document) error {
	for i, s := range doc.Streams {
		if err := b.buildStream(ctx, g, s); err != nil {
			return fmt.Errorf("streams[%d] %s: %w", i, s, err)
		}
	}
	return nil
}

func (b *Builder) buildStream(ctx context.Context, g *Graph, s config.StreamDecl) error {
	var from, to component.StreamComponent
	if s.ReadsFromInstance != "" {
		if from = g.Instance(s.ReadsFromInstance); from == nil {
			return apperrors.ConfigInvalid("unknown componentInstance '" + s.ReadsFromInstance + "'")
		}
	}
	if s.WritesToInstance != "" {
		if to = g.Instance(s.WritesToInstance); to == nil {
			return apperrors.ConfigInvalid("unknown componentInstance '" + s.WritesToInstance + "'")
		}
	}

	switch {
	case s.ReadsFromSource != "":
		return b.attachSource(ctx, g, s.ReadsFromSource, to, s.WritesToInstanceGraph)
	case s.WritesToDestination != "":
		return b.attachDestination(ctx, g, from, s.ReadsFromInstanceGraph, s.WritesToDestination)
	default:
		return b.connect(g, from, s.ReadsFromInstanceGraph, to, s.WritesToInstanceGraph)
	}
}

func (b *Builder) add(g *Graph, node config.Node) (component.StreamComponent, error) {
	if id := node.Instance(); id != "" && g.Instance(id) != nil {
		return nil, apperrors.DuplicateInstance(id)
	}
	c, err := b.registry.Build(node, b.deps)
	if err != nil {
		return nil, err
	}
	if g.Instance(c.InstanceName()) != nil {
		return nil, apperrors.DuplicateInstance(c.InstanceName())
	}
	g.add(c)
	return c, nil
}

// connect links two component slots. The producer's category decides
// whether the edge carries segments or bytes.
func (b *Builder) connect(g *Graph, from component.StreamComponent, fromStream string, to component.StreamComponent, toStream string) error {
	kind := from.Category().OutputKind()

	var link interface {
		stream.Input
		stream.Output
	}
	if kind == stream.KindSegments {
		link = stream.NewChannel(b.capacity)
	} else {
		link = stream.NewPipe(b.pipeBuffer)
	}

	if err := from.SetOutput(fromStream, link); err != nil {
		return err
	}
	if err := to.SetInput(toStream, link); err != nil {
		return err
	}
	g.Edges = append(g.Edges, Edge{
		From: from.InstanceName(), FromStream: fromStream,
		To: to.InstanceName(), ToStream: toStream,
		Kind: kind, link: link,
	})
	b.log.Debug("Stream connected", logger.Fields(
		"from", from.InstanceName(), "to", to.InstanceName(),
		logger.FieldStream, toStream, "kind", kind.String(),
	))
	return nil
}

func (b *Builder) attachSource(ctx context.Context, g *Graph, ref string, to component.StreamComponent, toStream string) error {
	rc, err := b.opener.OpenInput(ctx, ref)
	if err != nil {
		return err
	}
	in := stream.FromReader(rc)
	if err := to.SetInput(toStream, in); err != nil {
		_ = in.Close()
		return err
	}
	g.Edges = append(g.Edges, Edge{
		Source: ref, To: to.InstanceName(), ToStream: toStream,
		Kind: stream.KindBytes, link: in,
	})
	return nil
}

func (b *Builder) attachDestination(ctx context.Context, g *Graph, from component.StreamComponent, fromStream, ref string) error {
	if from.Category().OutputKind() != stream.KindBytes {
		return apperrors.Wiring(from.InstanceName(), fromStream,
			fmt.Sprintf("%s component cannot write to %s directly, add a writer", from.Category(), ref))
	}
	wc, err := b.opener.OpenOutput(ctx, ref)
	if err != nil {
		return err
	}
	out := stream.ToWriter(wc)
	if err := from.SetOutput(fromStream, out); err != nil {
		_ = out.Terminate()
		return err
	}
	g.Edges = append(g.Edges, Edge{
		From: from.InstanceName(), FromStream: fromStream, Destination: ref,
		Kind: stream.KindBytes, link: out,
	})
	return nil
}

// validateLinkState rejects components left without inputs or outputs.
// Components that generate data on their own may have no input.
func validateLinkState(g *Graph) error {
	for _, c := range g.Instances() {
		if len(c.InputNames()) == 0 && c.RequiresInput() {
			return apperrors.LinkState(c.InstanceName(), "input")
		}
		if len(c.OutputNames()) == 0 {
			return apperrors.LinkState(c.InstanceName(), "output")
		}
	}
	return nil
}
