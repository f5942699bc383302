// Package componenttest wires single components to in-memory streams for
// tests.
package componenttest

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/config"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/segment"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// Capacity is the channel size used by the helpers. It is large enough for
// a component to finish without a concurrent consumer.
const Capacity = 1024

// Build runs factory f for node and fails the test on error.
func Build(t testing.TB, f component.Factory, class string, node config.Node) component.StreamComponent {
	t.Helper()
	c, err := BuildErr(f, class, node)
	require.NoError(t, err)
	return c
}

// BuildErr runs factory f for node.
func BuildErr(f component.Factory, class string, node config.Node) (component.StreamComponent, error) {
	if node == nil {
		node = config.Node{}
	}
	return f(component.Spec{Instance: "test", Class: class, Node: node}, component.Dependencies{Logger: logger.Nop()})
}

// Run advances c to Running and starts it.
func Run(t testing.TB, c component.StreamComponent) error {
	t.Helper()
	for _, s := range []component.State{component.StateConfigured, component.StateWired, component.StateRunning} {
		require.NoError(t, c.Transition(s))
	}
	return c.Start(context.Background())
}

// BytesIn is a byte input holding text.
func BytesIn(text string) stream.Input {
	return stream.FromReader(io.NopCloser(strings.NewReader(text)))
}

// SegmentsIn is a terminated segment channel holding segs.
func SegmentsIn(t testing.TB, segs ...segment.Segment) *stream.Channel {
	t.Helper()
	ch := stream.NewChannel(len(segs) + 1)
	for _, s := range segs {
		require.NoError(t, ch.Segments().Write(context.Background(), s))
	}
	require.NoError(t, ch.Terminate())
	return ch
}

// SegmentsOut is an empty segment channel.
func SegmentsOut() *stream.Channel { return stream.NewChannel(Capacity) }

// Collect reads every segment left in ch.
func Collect(t testing.TB, ch *stream.Channel) []segment.Segment {
	t.Helper()
	var out []segment.Segment
	h := ch.Segments()
	for {
		s, ok, err := h.Read(context.Background())
		require.NoError(t, err)
		if !ok {
			if !h.CanRead() {
				return out
			}
			continue
		}
		out = append(out, s)
	}
}

// Sink records bytes written to a byte output.
type Sink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *Sink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// String returns everything written so far.
func (s *Sink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Closed reports whether the output was terminated.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// BytesOut is a byte output backed by a Sink.
func BytesOut() (*Sink, stream.Output) {
	s := &Sink{}
	return s, stream.ToWriter(s)
}
