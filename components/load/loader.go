// Package load holds loaders: components that parse serialized RDF bytes
// into segments.
package load

import (
	"context"
	"maps"

	"github.com/knakk/rdf"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/segment"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// RDFStreamLoaderClass is the registered class name.
const RDFStreamLoaderClass = "fintan.load.RDFStreamLoader"

// Configuration keys.
const (
	KeyLang           = "lang"
	KeyDelimiter      = "delimiter"
	KeySplit          = "split"
	KeyGlobalPrefixes = "globalPrefixes"
)

// RDFStreamLoader reads RDF text from each named input and emits one
// segment per chunk to the output of the same name.
type RDFStreamLoader struct {
	*component.Base
	format         rdf.Format
	chunker        segment.Chunker
	globalPrefixes bool
}

// NewRDFStreamLoader is the RDFStreamLoader factory.
func NewRDFStreamLoader(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	n := spec.Node
	format, err := segment.Format(n.String(KeyLang, "TTL"))
	if err != nil {
		return nil, err
	}
	chunker := segment.Chunker{Split: n.Bool(KeySplit, false)}
	if n.Has(KeyDelimiter) {
		chunker.Delimiter = n.String(KeyDelimiter, segment.DefaultDelimiter)
		chunker.Split = true
	}
	return &RDFStreamLoader{
		Base:           component.NewBase(spec, component.CategoryLoader, deps),
		format:         format,
		chunker:        chunker,
		globalPrefixes: n.Bool(KeyGlobalPrefixes, false),
	}, nil
}

func (l *RDFStreamLoader) Start(ctx context.Context) error {
	return component.ForEachStream(ctx, l.Base, l.load)
}

func (l *RDFStreamLoader) load(ctx context.Context, name string, in stream.Input, _ stream.Output) error {
	var cache map[string]string
	return l.chunker.Each(in.Reader(), func(chunk string) error {
		seg, err := l.parse(chunk, cache)
		if err != nil {
			l.Logger().Warn("segment could not be parsed and is skipped",
				logger.Fields(logger.FieldStream, name, logger.FieldError, err.Error()))
			l.Metrics().RecordDropped(ctx, l.InstanceName(), name, 1)
			return nil
		}
		if len(seg.Prefixes) > 0 && (!l.globalPrefixes || len(cache) == 0) {
			cache = maps.Clone(seg.Prefixes)
		}
		if seg.Len() == 0 {
			return nil
		}
		return l.Emit(ctx, name, seg)
	})
}

// parse decodes chunk. Global prefixes are always prepended; otherwise the
// cached prefixes of the previous segment are tried once when the chunk
// does not parse on its own.
func (l *RDFStreamLoader) parse(chunk string, cache map[string]string) (segment.Segment, error) {
	header := ""
	if l.format == rdf.Turtle && len(cache) > 0 {
		header = segment.PrefixHeader(cache)
	}
	if l.globalPrefixes && header != "" {
		return segment.Parse(header+chunk, l.format)
	}
	seg, err := segment.Parse(chunk, l.format)
	if err != nil && header != "" {
		return segment.Parse(header+chunk, l.format)
	}
	return seg, err
}

// Register adds the loaders to r.
func Register(r *component.Registry) error {
	return r.Register(RDFStreamLoaderClass, NewRDFStreamLoader)
}
