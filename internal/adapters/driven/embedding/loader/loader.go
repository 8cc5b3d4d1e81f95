// Package loader provides the load state machine shared by embedders.
//
// A Handle loads its value at most once. Concurrent callers wait for the
// load in progress. A failed load is cached and returned to every caller
// until Retry is called. A load cut short by its caller's context is not a
// failure: the handle returns to Unloaded and the next Get loads again.
package loader

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrNoLoader is returned by Get on an unloaded handle with no load func.
var ErrNoLoader = errors.New("loader: no load function")

// State is the lifecycle state of a Handle.
type State int

// Handle states.
const (
	Unloaded State = iota
	Loading
	Ready
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// LoadFunc produces the handle value.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Handle lazily loads a value of type T.
type Handle[T any] struct {
	load LoadFunc[T]

	mu    sync.Mutex
	state State
	value T
	err   error
	done  chan struct{}
}

// New creates an unloaded handle.
func New[T any](load LoadFunc[T]) *Handle[T] {
	return &Handle[T]{load: load}
}

// NewReady creates a handle that already holds value.
func NewReady[T any](value T) *Handle[T] {
	return &Handle[T]{state: Ready, value: value}
}

// Get returns the loaded value, loading it first if needed.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	var zero T

	h.mu.Lock()
	switch h.state {
	case Ready:
		v := h.value
		h.mu.Unlock()
		return v, nil
	case Failed:
		err := h.err
		h.mu.Unlock()
		return zero, err
	case Loading:
		done := h.done
		h.mu.Unlock()
		select {
		case <-done:
			return h.Get(ctx)
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	if h.load == nil {
		h.mu.Unlock()
		return zero, ErrNoLoader
	}
	h.state = Loading
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	v, err := h.load(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case err != nil && ctx.Err() != nil:
		h.state = Unloaded
	case err != nil:
		h.state = Failed
		h.err = err
	default:
		h.state = Ready
		h.value = v
	}
	close(done)
	return v, err
}

// Peek returns the value without loading. ok is false unless the handle
// is Ready.
func (h *Handle[T]) Peek() (value T, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Ready {
		return value, false
	}
	return h.value, true
}

// State returns the current state.
func (h *Handle[T]) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the cached load failure, if any.
func (h *Handle[T]) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Retry moves a failed handle back to Unloaded so the next Get loads again.
// It reports whether the handle was in the Failed state.
func (h *Handle[T]) Retry() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Failed {
		return false
	}
	h.state = Unloaded
	h.err = nil
	return true
}

// Close releases a ready value that implements io.Closer and returns the
// handle to Unloaded.
func (h *Handle[T]) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Ready {
		return nil
	}
	var zero T
	value := h.value
	h.value = zero
	h.state = Unloaded
	if c, ok := any(value).(io.Closer); ok {
		return c.Close()
	}
	return nil
}
