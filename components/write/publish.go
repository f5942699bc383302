package write

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/knakk/rdf"
	"golang.org/x/sync/errgroup"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/segment"
)

// Message header keys set on published segments.
const (
	HeaderContentType = "content-type"
	HeaderStream      = "fintan-stream"
	HeaderInstance    = "fintan-instance"
)

// contentType returns the media type of serialized segments.
func contentType(format rdf.Format) string {
	if format == rdf.NTriples {
		return "application/n-triples"
	}
	return "text/turtle"
}

// message is one serialized segment ready to publish.
type message struct {
	Stream string
	Key    string
	Body   []byte
	Count  int
}

// publishFunc delivers one message and returns the destination it went to.
type publishFunc func(ctx context.Context, msg message) (string, error)

// publisher reads every input concurrently, publishes each segment and
// writes one receipt line per message to the default output.
type publisher struct {
	base   *component.Base
	format rdf.Format

	mu  sync.Mutex
	seq map[string]int
}

func newPublisher(b *component.Base, format rdf.Format) *publisher {
	return &publisher{base: b, format: format, seq: make(map[string]int)}
}

func (p *publisher) run(ctx context.Context, publish publishFunc) error {
	var receipts io.Writer = io.Discard
	if out := p.base.Output(component.DefaultStream); out != nil {
		receipts = p.base.Writer(ctx, out)
	}
	var rmu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range p.base.InputNames() {
		in := p.base.Input(name)
		g.Go(func() error {
			return p.base.EachSegment(gctx, name, in, func(s segment.Segment) error {
				msg, err := p.encode(name, s)
				if err != nil {
					return err
				}
				dest, err := publish(gctx, msg)
				if err != nil {
					return err
				}
				rmu.Lock()
				defer rmu.Unlock()
				_, err = io.WriteString(receipts, fmt.Sprintf("%s\t%s\t%s\t%d\n", dest, streamLabel(name), msg.Key, msg.Count))
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	p.base.MarkDraining()
	return p.base.TerminateOutputs()
}

func (p *publisher) encode(name string, s segment.Segment) (message, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf, p.format); err != nil {
		return message{}, err
	}
	key := s.Label
	if key == "" {
		p.mu.Lock()
		p.seq[name]++
		key = fmt.Sprintf("%s-%s-%d", p.base.InstanceName(), streamLabel(name), p.seq[name])
		p.mu.Unlock()
	}
	return message{Stream: name, Key: key, Body: buf.Bytes(), Count: s.Len()}, nil
}

func streamLabel(name string) string {
	if name == component.DefaultStream {
		return "default"
	}
	return name
}
