package task

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/go-drift/reactor/pkg/errors"
	"github.com/go-drift/reactor/pkg/logging"
)

// DefaultWorkers is the compute pool size used when WithWorkers is not given.
var DefaultWorkers = runtime.GOMAXPROCS(0)

var (
	errCancelled     = stderrors.New("task cancelled")
	errHandleDropped = stderrors.New("task handle dropped without detach")
	errShutdown      = stderrors.New("runner shut down")
	errRaceLost      = stderrors.New("lost race")
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for task failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock sets the clock used by Sleep and Timeout.
func WithClock(c Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithWorkers bounds the compute pool used by Scope.Compute.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithOnSchedule sets a callback invoked whenever a task is spawned, so the
// owner of the runner can arrange a call to StartPending.
func WithOnSchedule(fn func()) Option {
	return func(r *Runner) { r.onSchedule = fn }
}

// Runner schedules and executes tasks.
type Runner struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu      sync.Mutex
	pending []*task
	live    map[uint64]*task
	closed  bool
	wake    chan struct{}

	nextID atomic.Uint64
	wg     sync.WaitGroup

	workers    int
	compute    *pool.Pool
	clock      Clock
	logger     *slog.Logger
	onSchedule func()

	completed atomic.Int64
	cancelled atomic.Int64
	failed    atomic.Int64
}

// NewRunner creates a runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		live:    make(map[uint64]*task),
		wake:    make(chan struct{}, 1),
		workers: DefaultWorkers,
		clock:   realClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	r.logger = logging.OrDefault(r.logger)
	r.compute = pool.New().WithMaxGoroutines(r.workers)
	r.ctx, r.cancel = context.WithCancelCause(context.Background())
	return r
}

// Clock returns the runner's clock.
func (r *Runner) Clock() Clock { return r.clock }

type task struct {
	id     uint64
	runner *Runner
	body   func(*Scope) (any, error)

	state    atomic.Int32
	detached atomic.Bool
	ctx      context.Context
	cancel   context.CancelCauseFunc

	done   chan struct{}
	result any
	err    error
}

func (t *task) State() State { return State(t.state.Load()) }

func (t *task) requestCancel(cause error) {
	t.cancel(cause)
}

func (t *task) dropped() {
	if t.detached.Load() {
		return
	}
	t.requestCancel(errHandleDropped)
}

// cancellation returns the error a suspension point reports once the task
// has been cancelled.
func (t *task) cancellation(op string) error {
	if t.ctx.Err() == nil {
		return nil
	}
	return errors.New(op, errors.KindCancelled, nil, context.Cause(t.ctx))
}

func (r *Runner) spawn(body func(*Scope) (any, error)) *task {
	t := &task{
		id:     r.nextID.Add(1),
		runner: r,
		body:   body,
		done:   make(chan struct{}),
	}
	t.ctx, t.cancel = context.WithCancelCause(r.ctx)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		t.cancel(errShutdown)
		r.finish(t, nil, t.cancellation("task.Spawn"))
		return t
	}
	r.pending = append(r.pending, t)
	r.live[t.id] = t
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	if r.onSchedule != nil {
		r.onSchedule()
	}
	return t
}

// Pending returns the number of tasks waiting to be started.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// StartPending starts every Scheduled task. Tasks cancelled before they
// started finish as Cancelled without running their body. It returns the
// number of tasks started.
func (r *Runner) StartPending() int {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	started := 0
	for _, t := range pending {
		if err := t.cancellation("task.Start"); err != nil {
			r.finish(t, nil, err)
			continue
		}
		started++
		r.wg.Add(1)
		go r.run(t)
	}
	return started
}

// Run starts tasks as they are spawned until ctx is done. It is the
// scheduling loop for runners not driven by an engine.
func (r *Runner) Run(ctx context.Context) error {
	for {
		r.StartPending()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
		}
	}
}

func (r *Runner) run(t *task) {
	defer r.wg.Done()
	t.state.Store(int32(StateRunning))
	s := &Scope{t: t}

	var (
		value any
		err   error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				perr := &errors.PanicError{
					Op:         fmt.Sprintf("task %d", t.id),
					Value:      rec,
					StackTrace: errors.CaptureStack(),
					Timestamp:  time.Now(),
				}
				errors.ReportPanic(perr)
				err = errors.New("task.run", errors.KindTaskFailed, nil, perr)
			}
		}()
		value, err = t.body(s)
	}()
	r.finish(t, value, err)
}

func (r *Runner) finish(t *task, value any, err error) {
	state := StateCompleted
	switch {
	case err != nil && errors.KindOf(err) == errors.KindCancelled,
		err != nil && t.ctx.Err() != nil && errors.KindOf(err) != errors.KindTaskFailed:
		state = StateCancelled
		if errors.KindOf(err) != errors.KindCancelled {
			err = errors.New("task.run", errors.KindCancelled, nil, context.Cause(t.ctx))
		}
		r.cancelled.Add(1)
	case err != nil:
		if k := errors.KindOf(err); k != errors.KindTaskFailed && k != errors.KindCancelled {
			err = errors.New("task.run", errors.KindTaskFailed, nil, err)
		}
		r.failed.Add(1)
		r.logger.Warn("task failed", "task", t.id, "detached", t.detached.Load(), "error", err)
		if t.detached.Load() {
			if e, ok := err.(*errors.Error); ok {
				errors.Report(e)
			}
		}
	default:
		r.completed.Add(1)
	}

	t.result = value
	t.err = err
	t.state.Store(int32(state))
	t.cancel(errCancelled)

	r.mu.Lock()
	delete(r.live, t.id)
	r.mu.Unlock()
	close(t.done)
}

// Stats is a snapshot of runner activity.
type Stats struct {
	Scheduled int   `json:"scheduled"`
	Running   int   `json:"running"`
	Suspended int   `json:"suspended"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Failed    int64 `json:"failed"`
}

// Stats returns live task counts by state plus cumulative outcome counts.
// Failed tasks are also counted as completed.
func (r *Runner) Stats() Stats {
	st := Stats{
		Completed: r.completed.Load() + r.failed.Load(),
		Cancelled: r.cancelled.Load(),
		Failed:    r.failed.Load(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.live {
		switch t.State() {
		case StateScheduled:
			st.Scheduled++
		case StateRunning:
			st.Running++
		case StateSuspended:
			st.Suspended++
		}
	}
	return st
}

// Shutdown cancels every task, including detached ones, and waits for
// their goroutines and the compute pool to finish or for ctx to be done.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel(errShutdown)
	r.StartPending()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		r.compute.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
