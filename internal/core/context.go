package core

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Handles collects the connections and processes opened on behalf of one
// deployment attempt, so that they can be closed from outside the attempt
// when it does not observe cancellation in time.
type Handles struct {
	mu      sync.Mutex
	closers []io.Closer
	closed  bool
}

type handlesKey struct{}

// WithHandles attaches h to ctx.
func WithHandles(ctx context.Context, h *Handles) context.Context {
	return context.WithValue(ctx, handlesKey{}, h)
}

// HandlesFrom returns the Handles attached to ctx, or nil.
func HandlesFrom(ctx context.Context) *Handles {
	h, _ := ctx.Value(handlesKey{}).(*Handles)
	return h
}

// Track registers c with the Handles attached to ctx. It is a no-op when ctx
// carries none. If the handles were already closed, c is closed immediately.
func Track(ctx context.Context, c io.Closer) {
	h := HandlesFrom(ctx)
	if h == nil || c == nil {
		return
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = c.Close()
		return
	}
	h.closers = append(h.closers, c)
	h.mu.Unlock()
}

// CloseAll closes every tracked handle in reverse order. Later Track calls
// close their argument right away.
func (h *Handles) CloseAll() error {
	h.mu.Lock()
	closers := h.closers
	h.closers = nil
	h.closed = true
	h.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of tracked handles.
func (h *Handles) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.closers)
}

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }
