// Package stream provides the edges of a Fintan pipeline: the bounded
// segment Handler, the byte Pipe, and adapters for external sources and
// sinks. Component slots hold these behind the narrow Input and Output
// interfaces, tagged by Kind.
package stream

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Pret-a-LLOD/Fintan/segment"
)

// Kind tells what an edge carries.
type Kind int

const (
	// KindSegments edges carry parsed segments through a Handler.
	KindSegments Kind = iota
	// KindBytes edges carry serialized bytes through a Pipe or an external endpoint.
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindSegments:
		return "segments"
	case KindBytes:
		return "bytes"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// SegmentHandler is the Handler specialization used between components.
type SegmentHandler = Handler[segment.Segment]

// Input is the consumer end attached to a component input slot.
type Input interface {
	Kind() Kind
	// Segments is non-nil for KindSegments inputs.
	Segments() *SegmentHandler
	// Reader is non-nil for KindBytes inputs.
	Reader() io.Reader
	// Close releases the consumer end once the component is done with it.
	Close() error
	Abort(err error)
}

// Output is the producer end attached to a component output slot.
type Output interface {
	Kind() Kind
	// Segments is non-nil for KindSegments outputs.
	Segments() *SegmentHandler
	// Writer is non-nil for KindBytes outputs.
	Writer() io.Writer
	// Terminate signals end-of-stream downstream. It is idempotent.
	Terminate() error
	Abort(err error)
}

// Channel adapts a SegmentHandler to both Input and Output, so the producer
// and consumer slot of an edge hold the same value.
type Channel struct {
	h *SegmentHandler
}

// NewChannel creates a segment edge of the given capacity.
func NewChannel(capacity int) *Channel {
	return &Channel{h: NewHandler[segment.Segment](capacity)}
}

func (c *Channel) Kind() Kind                { return KindSegments }
func (c *Channel) Segments() *SegmentHandler { return c.h }
func (c *Channel) Reader() io.Reader         { return nil }
func (c *Channel) Writer() io.Writer         { return nil }
func (c *Channel) Abort(err error)           { c.h.Abort(err) }

// Terminate terminates the underlying handler.
func (c *Channel) Terminate() error {
	c.h.Terminate()
	return nil
}

// Close is called by the consumer when it stops reading. If the producer is
// still active, further writes fail instead of blocking on a queue nobody drains.
func (c *Channel) Close() error {
	if c.h.CanRead() {
		c.h.Abort(ErrConsumerGone)
	}
	return nil
}

// ErrConsumerGone is the abort cause when a consumer stops reading early.
var ErrConsumerGone = fmt.Errorf("stream: consumer closed the channel")

// ReaderInput wraps an external source as a KindBytes input.
type ReaderInput struct {
	rc   io.ReadCloser
	once sync.Once
	err  error
}

// FromReader wraps rc. Closing the input closes rc.
func FromReader(rc io.ReadCloser) *ReaderInput { return &ReaderInput{rc: rc} }

func (r *ReaderInput) Kind() Kind                { return KindBytes }
func (r *ReaderInput) Segments() *SegmentHandler { return nil }
func (r *ReaderInput) Reader() io.Reader         { return r.rc }
func (r *ReaderInput) Abort(error)               { _ = r.Close() }

// Close closes the wrapped reader once.
func (r *ReaderInput) Close() error {
	r.once.Do(func() { r.err = r.rc.Close() })
	return r.err
}

// WriterOutput wraps an external sink as a KindBytes output.
type WriterOutput struct {
	wc   io.WriteCloser
	once sync.Once
	err  error
}

// ToWriter wraps wc. Terminating the output closes wc.
func ToWriter(wc io.WriteCloser) *WriterOutput { return &WriterOutput{wc: wc} }

func (w *WriterOutput) Kind() Kind                { return KindBytes }
func (w *WriterOutput) Segments() *SegmentHandler { return nil }
func (w *WriterOutput) Writer() io.Writer         { return w.wc }
func (w *WriterOutput) Abort(error)               { _ = w.Terminate() }

// Terminate closes the wrapped writer once.
func (w *WriterOutput) Terminate() error {
	w.once.Do(func() { w.err = w.wc.Close() })
	return w.err
}

// Drain consumes an input without using its data, so that an upstream
// producer is never blocked on a slot nobody processes.
func Drain(ctx context.Context, in Input) error {
	switch in.Kind() {
	case KindSegments:
		h := in.Segments()
		for h.CanRead() {
			if _, _, err := h.Read(ctx); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := io.Copy(io.Discard, in.Reader())
		return err
	}
}
