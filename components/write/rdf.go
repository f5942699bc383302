// Package write holds writers: components that serialize segment streams
// as bytes or publish them to message brokers.
package write

import (
	"bufio"
	"context"
	"maps"

	"github.com/knakk/rdf"

	"github.com/Pret-a-LLOD/Fintan/component"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/segment"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// Registered class names.
const (
	RDFStreamWriterClass   = "fintan.write.RDFStreamWriter"
	TSVStreamWriterClass   = "fintan.write.TSVStreamWriter"
	KafkaStreamWriterClass = "fintan.write.KafkaStreamWriter"
	NATSStreamWriterClass  = "fintan.write.NATSStreamWriter"
)

type rdfWriterConfig struct {
	Lang                string            `mapstructure:"lang"`
	Delimiter           *string           `mapstructure:"delimiter"`
	PrefixDeduplication bool              `mapstructure:"prefixDeduplication"`
	CustomPrefixes      map[string]string `mapstructure:"customPrefixes"`
}

// writerFormat resolves lang for output. RDF/XML can be read but not written.
func writerFormat(lang string) (rdf.Format, error) {
	format, err := segment.Format(lang)
	if err != nil {
		return format, apperrors.ConfigInvalid(err.Error())
	}
	if format != rdf.Turtle && format != rdf.NTriples {
		return format, apperrors.ConfigInvalid("lang " + lang + " cannot be written, use TTL or NT")
	}
	return format, nil
}

// RDFStreamWriter serializes each named input to the output of the same
// name. With prefixDeduplication the prefix header is only repeated when
// it differs from the previous segment's.
type RDFStreamWriter struct {
	*component.Base
	cfg    rdfWriterConfig
	format rdf.Format
}

// NewRDFStreamWriter is the RDFStreamWriter factory.
func NewRDFStreamWriter(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	var cfg rdfWriterConfig
	if err := spec.Node.Decode(&cfg); err != nil {
		return nil, err
	}
	format, err := writerFormat(cfg.Lang)
	if err != nil {
		return nil, err
	}
	return &RDFStreamWriter{
		Base:   component.NewBase(spec, component.CategoryWriter, deps),
		cfg:    cfg,
		format: format,
	}, nil
}

func (w *RDFStreamWriter) Start(ctx context.Context) error {
	return component.ForEachStream(ctx, w.Base, w.write)
}

func (w *RDFStreamWriter) write(ctx context.Context, name string, in stream.Input, out stream.Output) error {
	bw := bufio.NewWriter(w.Writer(ctx, out))
	lastHeader := ""
	err := w.EachSegment(ctx, name, in, func(s segment.Segment) error {
		header := ""
		if w.format == rdf.Turtle {
			prefixes := maps.Clone(s.Prefixes)
			if prefixes == nil {
				prefixes = make(map[string]string, len(w.cfg.CustomPrefixes))
			}
			maps.Copy(prefixes, w.cfg.CustomPrefixes)
			header = segment.PrefixHeader(prefixes)
		}
		if !w.cfg.PrefixDeduplication || header != lastHeader {
			if _, err := bw.WriteString(header); err != nil {
				return err
			}
			lastHeader = header
		}
		if err := (segment.Segment{Triples: s.Triples}).Encode(bw, w.format); err != nil {
			return err
		}
		if w.cfg.Delimiter != nil {
			if _, err := bw.WriteString(*w.cfg.Delimiter + "\n"); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

// Register adds the writers to r.
func Register(r *component.Registry) error {
	for name, f := range map[string]component.Factory{
		RDFStreamWriterClass:   NewRDFStreamWriter,
		TSVStreamWriterClass:   NewTSVStreamWriter,
		KafkaStreamWriterClass: NewKafkaStreamWriter,
		NATSStreamWriterClass:  NewNATSStreamWriter,
	} {
		if err := r.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}
