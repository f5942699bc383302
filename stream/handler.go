package stream

import (
	"context"
	"sync"

	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
)

// DefaultCapacity is the queue size used when none is configured.
const DefaultCapacity = 100

// ErrStreamClosed is returned by writes to a terminated Handler.
// Match it with errors.Is.
var ErrStreamClosed = apperrors.StreamClosed()

type envelope[T any] struct {
	value    T
	sentinel bool
}

// Handler is a bounded, blocking, terminable FIFO queue connecting one
// producer to one or more consumers.
//
// Termination follows the single poison pill protocol: Terminate enqueues
// one sentinel, and only when the queue is empty at that moment. A reader
// blocked on an empty queue is woken by the sentinel; readers that still
// find buffered items drain them and then observe exhaustion through
// CanRead. Read never surfaces the sentinel.
type Handler[T any] struct {
	readMu sync.Mutex // serializes Read

	mu       sync.Mutex
	buf      []envelope[T]
	head     int
	size     int
	active   bool
	abortErr error

	// broadcast channels, closed and replaced on every state change
	itemAdded chan struct{}
	itemTaken chan struct{}
}

// NewHandler creates a Handler. A capacity <= 0 selects DefaultCapacity.
func NewHandler[T any](capacity int) *Handler[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Handler[T]{
		buf:       make([]envelope[T], capacity),
		active:    true,
		itemAdded: make(chan struct{}),
		itemTaken: make(chan struct{}),
	}
}

// Cap returns the queue capacity.
func (h *Handler[T]) Cap() int { return len(h.buf) }

// Len returns the number of buffered payload items.
func (h *Handler[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payloadLocked()
}

// Active reports whether the producer has not terminated yet.
func (h *Handler[T]) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// CanWrite reports whether Write may still succeed.
func (h *Handler[T]) CanWrite() bool { return h.Active() }

// CanRead reports whether the handler is active or still holds payload items.
func (h *Handler[T]) CanRead() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active || h.payloadLocked() > 0
}

// Write enqueues item, blocking while the queue is full. It fails with
// ErrStreamClosed if the handler is terminated before the item is enqueued.
func (h *Handler[T]) Write(ctx context.Context, item T) error {
	for {
		h.mu.Lock()
		if !h.active {
			err := h.closedErrLocked()
			h.mu.Unlock()
			return err
		}
		if h.size < len(h.buf) {
			h.pushLocked(envelope[T]{value: item})
			h.mu.Unlock()
			return nil
		}
		wait := h.itemTaken
		h.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Read returns the next item in FIFO order. ok is false when the handler
// was terminated and no payload remains; callers then check CanRead rather
// than treating the zero value as data.
func (h *Handler[T]) Read(ctx context.Context) (item T, ok bool, err error) {
	h.readMu.Lock()
	defer h.readMu.Unlock()

	for {
		h.mu.Lock()
		if h.abortErr != nil {
			err := h.abortErr
			h.mu.Unlock()
			return item, false, err
		}
		if h.size > 0 {
			e := h.popLocked()
			h.mu.Unlock()
			if e.sentinel {
				return item, false, nil
			}
			return e.value, true, nil
		}
		if !h.active {
			h.mu.Unlock()
			return item, false, nil
		}
		wait := h.itemAdded
		h.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return item, false, ctx.Err()
		}
	}
}

// Terminate marks the handler inactive. It is idempotent.
func (h *Handler[T]) Terminate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active {
		return
	}
	h.active = false
	if h.size == 0 {
		h.pushLocked(envelope[T]{sentinel: true})
	}
	h.notifyWritersLocked()
}

// Abort terminates the handler, discards buffered items and makes every
// pending and future Read and Write fail with err.
func (h *Handler[T]) Abort(err error) {
	if err == nil {
		err = ErrStreamClosed
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.abortErr != nil {
		return
	}
	h.active = false
	h.abortErr = err
	clear(h.buf)
	h.size = 0
	h.notifyReadersLocked()
	h.notifyWritersLocked()
}

func (h *Handler[T]) closedErrLocked() error {
	if h.abortErr != nil {
		return apperrors.StreamClosed().WithCause(h.abortErr)
	}
	return apperrors.StreamClosed()
}

func (h *Handler[T]) payloadLocked() int {
	if h.size > 0 && h.buf[h.head].sentinel {
		return h.size - 1
	}
	return h.size
}

func (h *Handler[T]) pushLocked(e envelope[T]) {
	h.buf[(h.head+h.size)%len(h.buf)] = e
	h.size++
	h.notifyReadersLocked()
}

func (h *Handler[T]) popLocked() envelope[T] {
	e := h.buf[h.head]
	h.buf[h.head] = envelope[T]{}
	h.head = (h.head + 1) % len(h.buf)
	h.size--
	h.notifyWritersLocked()
	return e
}

func (h *Handler[T]) notifyReadersLocked() {
	close(h.itemAdded)
	h.itemAdded = make(chan struct{})
}

func (h *Handler[T]) notifyWritersLocked() {
	close(h.itemTaken)
	h.itemTaken = make(chan struct{})
}
