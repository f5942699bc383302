package write

import (
	"bufio"
	"context"
	"strings"

	"github.com/knakk/rdf"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/segment"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

type tsvWriterConfig struct {
	DelimiterCSV string  `mapstructure:"delimiterCSV"`
	Delimiter    *string `mapstructure:"delimiter"`
	Header       bool    `mapstructure:"header"`
}

// TSVStreamWriter renders every triple as a "subject predicate object" row.
type TSVStreamWriter struct {
	*component.Base
	cfg tsvWriterConfig
}

// NewTSVStreamWriter is the TSVStreamWriter factory.
func NewTSVStreamWriter(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	cfg := tsvWriterConfig{DelimiterCSV: "\t"}
	if err := spec.Node.Decode(&cfg); err != nil {
		return nil, err
	}
	return &TSVStreamWriter{
		Base: component.NewBase(spec, component.CategoryWriter, deps),
		cfg:  cfg,
	}, nil
}

func (w *TSVStreamWriter) Start(ctx context.Context) error {
	return component.ForEachStream(ctx, w.Base, w.write)
}

func (w *TSVStreamWriter) write(ctx context.Context, name string, in stream.Input, out stream.Output) error {
	bw := bufio.NewWriter(w.Writer(ctx, out))
	if w.cfg.Header {
		_, _ = bw.WriteString(w.row("subject", "predicate", "object"))
	}
	err := w.EachSegment(ctx, name, in, func(s segment.Segment) error {
		for _, t := range s.Triples {
			_, _ = bw.WriteString(w.row(term(t.Subj), term(t.Pred), term(t.Obj)))
		}
		if w.cfg.Delimiter != nil {
			_, _ = bw.WriteString(*w.cfg.Delimiter + "\n")
		}
		return bw.Flush()
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

func (w *TSVStreamWriter) row(cols ...string) string {
	return strings.Join(cols, w.cfg.DelimiterCSV) + "\n"
}

// term renders an RDF term without N-Triples brackets or quotes. Line
// breaks and tabs inside literals are escaped so a row stays one line.
func term(t rdf.Term) string {
	return strings.NewReplacer("\n", `\n`, "\t", `\t`, "\r", `\r`).Replace(t.String())
}
