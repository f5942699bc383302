package stream

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// DefaultPipeBuffer is the write-side buffer of a Pipe.
const DefaultPipeBuffer = 64 * 1024

// Pipe is a blocking byte conduit between a producer writing serialized
// data and a consumer parsing it. Writes are buffered up to the configured
// size before they block on the reader.
type Pipe struct {
	pr *io.PipeReader
	pw *io.PipeWriter
	bw *bufio.Writer

	once sync.Once
	err  error

	mu    sync.Mutex
	cause error
}

// NewPipe creates a Pipe. A size <= 0 selects DefaultPipeBuffer.
func NewPipe(size int) *Pipe {
	if size <= 0 {
		size = DefaultPipeBuffer
	}
	pr, pw := io.Pipe()
	p := &Pipe{pr: pr, pw: pw}
	p.bw = bufio.NewWriterSize(pipeWriter{p}, size)
	return p
}

// Kind reports KindBytes.
func (p *Pipe) Kind() Kind { return KindBytes }

// Reader returns the consumer side.
func (p *Pipe) Reader() io.Reader { return pipeReader{p} }

// Writer returns the buffered producer side. It must only be used by one goroutine.
func (p *Pipe) Writer() io.Writer { return p.bw }

// Segments returns nil; a Pipe carries bytes.
func (p *Pipe) Segments() *SegmentHandler { return nil }

// Terminate flushes buffered data and signals EOF to the reader. Only the
// first call has an effect; later calls return the first result.
func (p *Pipe) Terminate() error {
	p.once.Do(func() {
		if err := p.bw.Flush(); err != nil {
			p.err = err
			_ = p.pw.CloseWithError(err)
			return
		}
		p.err = p.pw.Close()
	})
	return p.err
}

// Abort closes both ends, unblocking a reader or writer stuck on the pipe.
// Both sides then fail with err instead of io.ErrClosedPipe.
func (p *Pipe) Abort(err error) {
	if err == nil {
		err = io.ErrClosedPipe
	}
	p.mu.Lock()
	if p.cause == nil {
		p.cause = err
	}
	p.mu.Unlock()
	_ = p.pw.CloseWithError(err)
	_ = p.pr.CloseWithError(err)
}

// translate replaces the generic closed-pipe error with the abort cause.
func (p *Pipe) translate(err error) error {
	if !errors.Is(err, io.ErrClosedPipe) {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cause != nil {
		return p.cause
	}
	return err
}

type pipeReader struct{ p *Pipe }

func (r pipeReader) Read(b []byte) (int, error) {
	n, err := r.p.pr.Read(b)
	return n, r.p.translate(err)
}

type pipeWriter struct{ p *Pipe }

func (w pipeWriter) Write(b []byte) (int, error) {
	n, err := w.p.pw.Write(b)
	return n, w.p.translate(err)
}

// Close releases the consumer side. A producer still writing gets io.ErrClosedPipe.
func (p *Pipe) Close() error {
	return p.pr.Close()
}
