package task

import (
	"context"
	"runtime"

	"github.com/go-drift/reactor/pkg/errors"
)

// Func is the body of a task producing a T.
type Func[T any] func(s *Scope) (T, error)

// Handle is the owner's view of a spawned task.
type Handle[T any] struct {
	t *task
}

// Spawn registers fn as a new task in the Scheduled state. The task starts
// at the next StartPending; Spawn never runs fn synchronously.
//
// If the returned handle becomes unreachable before Detach is called, the
// task is cancelled as if Drop had been called.
func Spawn[T any](r *Runner, fn Func[T]) *Handle[T] {
	t := r.spawn(func(s *Scope) (any, error) {
		v, err := fn(s)
		return v, err
	})
	h := &Handle[T]{t: t}
	runtime.AddCleanup(h, (*task).dropped, t)
	return h
}

// ID returns the task's runner-unique identifier.
func (h *Handle[T]) ID() uint64 { return h.t.id }

// State returns the task's current state.
func (h *Handle[T]) State() State { return h.t.State() }

// Done returns a channel closed when the task finishes.
func (h *Handle[T]) Done() <-chan struct{} { return h.t.done }

// Detach makes the task fire-and-forget: it keeps running after the handle
// is dropped. Failures of detached tasks are reported to the global error
// handler.
func (h *Handle[T]) Detach() {
	h.t.detached.Store(true)
}

// Detached reports whether Detach was called.
func (h *Handle[T]) Detached() bool { return h.t.detached.Load() }

// Drop releases the handle. Unless the task was detached, it is cancelled
// at its next suspension point.
func (h *Handle[T]) Drop() {
	h.t.dropped()
}

// Cancel requests cancellation. The task observes it at its next
// suspension point; cancellation never interrupts a running step.
func (h *Handle[T]) Cancel() {
	h.t.requestCancel(errCancelled)
}

// Result returns the task's outcome if it has finished.
func (h *Handle[T]) Result() (value T, err error, ok bool) {
	select {
	case <-h.t.done:
	default:
		return value, nil, false
	}
	value, err = h.result()
	return value, err, true
}

// Await blocks until the task finishes or ctx is done. A done ctx stops
// the wait but does not cancel the task. Use Join from inside another task.
func (h *Handle[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-h.t.done:
		return h.result()
	case <-ctx.Done():
		var zero T
		return zero, errors.New("task.Await", errors.KindCancelled, nil, ctx.Err())
	}
}

func (h *Handle[T]) result() (T, error) {
	v, _ := h.t.result.(T)
	return v, h.t.err
}
