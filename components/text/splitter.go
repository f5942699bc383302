// Package text holds transformers for plain text streams.
package text

import (
	"bufio"
	"context"
	"strings"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/segment"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// SimpleLineBreakSplitterClass is the registered class name.
const SimpleLineBreakSplitterClass = "fintan.text.SimpleLineBreakSplitter"

// KeyDelimiter overrides the delimiter line written between blocks.
const KeyDelimiter = "delimiter"

const maxLineSize = 16 * 1024 * 1024

// SimpleLineBreakSplitter turns blank-line separated blocks into delimited
// segments: blank lines are dropped and the delimiter line is written
// before the first non-blank line that follows them.
type SimpleLineBreakSplitter struct {
	*component.Base
	delimiter string
}

// NewSimpleLineBreakSplitter is the SimpleLineBreakSplitter factory.
func NewSimpleLineBreakSplitter(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	return &SimpleLineBreakSplitter{
		Base:      component.NewBase(spec, component.CategoryTransformer, deps),
		delimiter: spec.Node.String(KeyDelimiter, segment.DefaultDelimiter),
	}, nil
}

func (s *SimpleLineBreakSplitter) Start(ctx context.Context) error {
	return component.ForEachStream(ctx, s.Base, func(ctx context.Context, _ string, in stream.Input, out stream.Output) error {
		return s.split(ctx, in, out)
	})
}

func (s *SimpleLineBreakSplitter) split(ctx context.Context, in stream.Input, out stream.Output) error {
	sc := bufio.NewScanner(in.Reader())
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	w := bufio.NewWriter(s.Writer(ctx, out))

	blank := 0
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			blank++
			continue
		}
		if blank > 0 {
			if _, err := w.WriteString(s.delimiter + "\n"); err != nil {
				return err
			}
			blank = 0
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return w.Flush()
}

// Register adds the text transformers to r.
func Register(r *component.Registry) error {
	return r.Register(SimpleLineBreakSplitterClass, NewSimpleLineBreakSplitter)
}
