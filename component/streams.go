package component

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// StreamFunc processes one stream: everything read from in goes to out.
type StreamFunc func(ctx context.Context, name string, in stream.Input, out stream.Output) error

// ForEachStream runs fn concurrently for every connected input that has an
// output of the same name and terminates that output when fn succeeds.
// Inputs without a matching output are drained and dropped so their
// producers never block. The component moves to Draining once every stream
// is done.
func ForEachStream(ctx context.Context, b *Base, fn StreamFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range b.InputNames() {
		in := b.Input(name)
		out := b.Output(name)
		if out == nil {
			b.log.Info("input stream does not have a corresponding output stream and is thus dropped",
				logger.Fields(logger.FieldStream, name))
			g.Go(func() error { return stream.Drain(gctx, in) })
			continue
		}
		g.Go(func() error {
			if err := fn(gctx, name, in, out); err != nil {
				return err
			}
			return out.Terminate()
		})
	}
	err := g.Wait()
	b.MarkDraining()
	return err
}
