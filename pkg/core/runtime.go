package core

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/logging"
	"github.com/go-drift/reactor/pkg/task"
)

// Options configures a Runtime.
type Options struct {
	// Logger receives runtime and task diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
	// Compositor receives the frames of every pass. May be nil.
	Compositor Compositor
	// Clock drives task timers. Nil uses the system clock.
	Clock task.Clock
	// Workers bounds the compute pool. Zero uses task.DefaultWorkers.
	Workers int
	// OnNeedsFrame is called when an entity becomes dirty or a task is
	// spawned, so the owning loop can schedule a tick.
	OnNeedsFrame func()
}

// Runtime ties the entity store, change tracker, render scheduler and task
// runner together. Update and RunPass belong to a single owning loop;
// everything else is safe for concurrent use.
type Runtime struct {
	store     *entity.Store
	ui        *entity.Session
	tracker   *ChangeTracker
	scheduler *Scheduler
	runner    *task.Runner
	logger    *slog.Logger

	mu         sync.Mutex
	compositor Compositor
	windows    []*Window
	nextWindow int
}

// NewRuntime creates a runtime with an empty store.
func NewRuntime(opts Options) *Runtime {
	logger := logging.OrDefault(opts.Logger)
	needsFrame := opts.OnNeedsFrame
	if needsFrame == nil {
		needsFrame = func() {}
	}

	runnerOpts := []task.Option{
		task.WithLogger(logger),
		task.WithOnSchedule(needsFrame),
	}
	if opts.Clock != nil {
		runnerOpts = append(runnerOpts, task.WithClock(opts.Clock))
	}
	if opts.Workers > 0 {
		runnerOpts = append(runnerOpts, task.WithWorkers(opts.Workers))
	}

	store := entity.NewStore()
	rt := &Runtime{
		store:      store,
		ui:         store.NewSession(),
		tracker:    NewChangeTracker(needsFrame),
		runner:     task.NewRunner(runnerOpts...),
		logger:     logger,
		compositor: opts.Compositor,
	}
	rt.scheduler = newScheduler(rt)
	return rt
}

// Store returns the entity store.
func (rt *Runtime) Store() *entity.Store { return rt.store }

// Tracker returns the change tracker.
func (rt *Runtime) Tracker() *ChangeTracker { return rt.tracker }

// Scheduler returns the render scheduler.
func (rt *Runtime) Scheduler() *Scheduler { return rt.scheduler }

// Runner returns the task runner.
func (rt *Runtime) Runner() *task.Runner { return rt.runner }

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// Compositor returns the current compositor.
func (rt *Runtime) Compositor() Compositor {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.compositor
}

// SetCompositor replaces the compositor used by later passes.
func (rt *Runtime) SetCompositor(c Compositor) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.compositor = c
}

// Windows returns the open windows in opening order.
func (rt *Runtime) Windows() []*Window {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]*Window(nil), rt.windows...)
}

// Update runs fn with a Context on the UI session. It is the entry point
// for input events. fn must not retain the Context.
func (rt *Runtime) Update(fn func(cx *Context)) {
	fn(&Context{rt: rt, sess: rt.ui})
}

// StartTasks starts every Scheduled task and returns how many started.
func (rt *Runtime) StartTasks() int {
	return rt.runner.StartPending()
}

// RunPass runs one render pass. See Scheduler.RunPass.
func (rt *Runtime) RunPass() (PassReport, error) {
	return rt.scheduler.RunPass()
}

// Shutdown closes every window and shuts the task runner down.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	for _, w := range rt.Windows() {
		w.Close()
	}
	err := rt.runner.Shutdown(ctx)
	rt.scheduler.close()
	return err
}
