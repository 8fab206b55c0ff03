package task

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-drift/reactor/pkg/errors"
)

// ErrChannelClosed is returned by Await when the awaited channel is closed.
var ErrChannelClosed = stderrors.New("task: awaited channel closed")

// Scope is a running task's view of itself. It is only valid inside the
// task body and must not be shared with other goroutines.
type Scope struct {
	t      *task
	guards []func()
}

// ID returns the task identifier.
func (s *Scope) ID() uint64 { return s.t.id }

// Runner returns the runner executing the task, for spawning subtasks.
func (s *Scope) Runner() *Runner { return s.t.runner }

// Cancelled reports whether cancellation has been requested. It does not
// suspend.
func (s *Scope) Cancelled() bool { return s.t.ctx.Err() != nil }

// BeforeSuspend registers fn to run at every suspension point before the
// task gives up control. Guards enforce invariants such as not holding
// entity access across a suspension.
func (s *Scope) BeforeSuspend(fn func()) {
	s.guards = append(s.guards, fn)
}

// suspend parks the task in wait. The cancellation flag is checked before
// and after; wait must return when ctx is done.
func (s *Scope) suspend(op string, wait func(done <-chan struct{}) error) error {
	for _, g := range s.guards {
		g()
	}
	if err := s.t.cancellation(op); err != nil {
		return err
	}
	s.t.state.Store(int32(StateSuspended))
	err := wait(s.t.ctx.Done())
	s.t.state.Store(int32(StateRunning))
	if cerr := s.t.cancellation(op); cerr != nil {
		return cerr
	}
	return err
}

// Yield is a bare suspension point: it lets other goroutines run and
// observes cancellation.
func (s *Scope) Yield() error {
	return s.suspend("task.Yield", func(<-chan struct{}) error {
		runtime.Gosched()
		return nil
	})
}

// Sleep suspends the task for d on the runner's clock.
func (s *Scope) Sleep(d time.Duration) error {
	timer := s.t.runner.clock.After(d)
	return s.suspend("task.Sleep", func(done <-chan struct{}) error {
		select {
		case <-timer:
		case <-done:
		}
		return nil
	})
}

// Suspend parks the task until the callback passed to register is invoked.
// This is the hook for I/O collaborators: register stores wake and calls
// it once data is ready. wake may be called from any goroutine, more than
// once, or after the task stopped waiting.
func (s *Scope) Suspend(register func(wake func())) error {
	ready := make(chan struct{})
	var once sync.Once
	register(func() { once.Do(func() { close(ready) }) })
	return s.suspend("task.Suspend", func(done <-chan struct{}) error {
		select {
		case <-ready:
		case <-done:
		}
		return nil
	})
}

// Compute runs a CPU-bound step on the runner's bounded worker pool and
// suspends until it finishes. The step always runs to completion; a
// cancellation requested meanwhile is reported afterwards.
func (s *Scope) Compute(fn func()) error {
	r := s.t.runner
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return errors.New("task.Compute", errors.KindCancelled, nil, errShutdown)
	}
	var perr *errors.PanicError
	return s.suspend("task.Compute", func(<-chan struct{}) error {
		finished := make(chan struct{})
		r.compute.Go(func() {
			defer close(finished)
			defer func() {
				if rec := recover(); rec != nil {
					perr = &errors.PanicError{
						Op:         fmt.Sprintf("task %d compute", s.t.id),
						Value:      rec,
						StackTrace: errors.CaptureStack(),
						Timestamp:  time.Now(),
					}
				}
			}()
			fn()
		})
		<-finished
		if perr != nil {
			return errors.New("task.Compute", errors.KindTaskFailed, nil, perr)
		}
		return nil
	})
}

// Await suspends until a value arrives on ch.
func Await[V any](s *Scope, ch <-chan V) (V, error) {
	var (
		v  V
		ok bool
	)
	err := s.suspend("task.Await", func(done <-chan struct{}) error {
		select {
		case v, ok = <-ch:
			if !ok {
				return ErrChannelClosed
			}
		case <-done:
		}
		return nil
	})
	return v, err
}

// Join suspends until h finishes and returns its result.
func Join[V any](s *Scope, h *Handle[V]) (V, error) {
	err := s.suspend("task.Join", func(done <-chan struct{}) error {
		select {
		case <-h.t.done:
		case <-done:
		}
		return nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return h.result()
}
