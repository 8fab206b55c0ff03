package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-drift/reactor/pkg/core"
	"github.com/go-drift/reactor/pkg/errors"
	"github.com/go-drift/reactor/pkg/logging"
	"github.com/go-drift/reactor/pkg/task"
)

// DefaultMaxPassesPerTick bounds cascading render passes within one tick.
const DefaultMaxPassesPerTick = 8

// Config configures an Engine.
type Config struct {
	// MaxPassesPerTick bounds how many render passes one Tick runs while
	// renders keep notifying. Dirty ids left after the last pass wait for
	// the next tick. Zero uses DefaultMaxPassesPerTick.
	MaxPassesPerTick int
	// Logger receives engine diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
	// Compositor receives rendered frames. May be nil.
	Compositor core.Compositor
	// Workers bounds the task compute pool.
	Workers int
	// Clock drives task timers. Nil uses the system clock.
	Clock task.Clock
	// TraceSamples is the pass trace capacity. Zero uses the default.
	TraceSamples int
	// SlowPassThreshold marks passes counted as slow in the trace.
	SlowPassThreshold time.Duration
	// RuntimeSampleInterval enables periodic runtime sampling when positive.
	RuntimeSampleInterval time.Duration
	// RuntimeSampleWindow is the history kept by the runtime sampler.
	RuntimeSampleWindow time.Duration
}

// TickReport summarizes one Tick.
type TickReport struct {
	Tick         uint64 `json:"tick"`
	Callbacks    int    `json:"callbacks"`
	TasksStarted int    `json:"tasksStarted"`
	Passes       int    `json:"passes"`
	Deferred     int    `json:"deferred"`
}

// Engine is the UI-owning loop. It serializes input callbacks, task
// starts and render passes on one logical thread: every Tick holds the
// tick lock for its whole duration.
type Engine struct {
	cfg    Config
	rt     *core.Runtime
	logger *slog.Logger

	// tickLock serializes Update and Tick.
	tickLock sync.Mutex

	dispatchMu    sync.Mutex
	dispatchQueue []func(*core.Context)
	wake          chan struct{}

	trace   *PassTraceBuffer
	samples *RuntimeSampleBuffer
	sampler runtimeSampler
	debug   debugServer

	ticks    atomic.Uint64
	deferred atomic.Uint64
	closed   atomic.Bool
}

// New creates an engine with a fresh runtime.
func New(cfg Config) *Engine {
	if cfg.MaxPassesPerTick <= 0 {
		cfg.MaxPassesPerTick = DefaultMaxPassesPerTick
	}
	e := &Engine{
		cfg:    cfg,
		logger: logging.OrDefault(cfg.Logger),
		wake:   make(chan struct{}, 1),
		trace:  NewPassTraceBuffer(cfg.TraceSamples, cfg.SlowPassThreshold),
	}
	e.rt = core.NewRuntime(core.Options{
		Logger:       e.logger,
		Compositor:   cfg.Compositor,
		Clock:        cfg.Clock,
		Workers:      cfg.Workers,
		OnNeedsFrame: e.RequestTick,
	})
	if cfg.RuntimeSampleInterval > 0 {
		e.samples = NewRuntimeSampleBuffer(cfg.RuntimeSampleWindow, cfg.RuntimeSampleInterval)
		e.sampler.start(e, e.samples.Interval())
	}
	return e
}

// Runtime returns the engine's runtime.
func (e *Engine) Runtime() *core.Runtime { return e.rt }

// Trace returns the pass trace buffer.
func (e *Engine) Trace() *PassTraceBuffer { return e.trace }

// RuntimeSamples returns the runtime sample buffer, or nil when sampling
// is disabled.
func (e *Engine) RuntimeSamples() *RuntimeSampleBuffer { return e.samples }

// Ticks returns the number of completed ticks.
func (e *Engine) Ticks() uint64 { return e.ticks.Load() }

// RequestTick asks Run to tick soon. Safe to call from any goroutine.
func (e *Engine) RequestTick() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Dispatch queues fn to run on the engine loop at the start of the next
// tick. Safe to call from any goroutine.
func (e *Engine) Dispatch(fn func(cx *core.Context)) {
	if fn == nil || e.closed.Load() {
		return
	}
	e.dispatchMu.Lock()
	e.dispatchQueue = append(e.dispatchQueue, fn)
	e.dispatchMu.Unlock()
	e.RequestTick()
}

func (e *Engine) drainDispatchQueue() []func(*core.Context) {
	e.dispatchMu.Lock()
	callbacks := e.dispatchQueue
	e.dispatchQueue = nil
	e.dispatchMu.Unlock()
	return callbacks
}

// Update runs fn synchronously with a root Context. It must not be called
// from inside a tick, such as from a Dispatch callback.
func (e *Engine) Update(fn func(cx *core.Context)) {
	e.tickLock.Lock()
	defer e.tickLock.Unlock()
	e.runCallback(fn)
}

func (e *Engine) runCallback(fn func(cx *core.Context)) {
	defer errors.RecoverWithCallback("engine.dispatch", func(r any) {
		e.logger.Error("dispatch callback panicked", "panic", r)
	})
	e.rt.Update(fn)
}

// Tick runs queued callbacks, starts scheduled tasks and renders until the
// dirty set is empty or MaxPassesPerTick passes ran. A render error stops
// the tick and is returned.
func (e *Engine) Tick() (TickReport, error) {
	e.tickLock.Lock()
	defer e.tickLock.Unlock()

	rep := TickReport{Tick: e.ticks.Add(1)}
	callbacks := e.drainDispatchQueue()
	rep.Callbacks = len(callbacks)
	for _, cb := range callbacks {
		e.runCallback(cb)
	}
	rep.TasksStarted = e.rt.StartTasks()

	tracker := e.rt.Tracker()
	for i := 0; i < e.cfg.MaxPassesPerTick && tracker.Len() > 0; i++ {
		pr, err := e.rt.RunPass()
		e.trace.Add(newPassSample(rep.Tick, pr, err), pr.Duration)
		if pr.Pass != 0 {
			rep.Passes++
		}
		if err != nil {
			return rep, fmt.Errorf("engine: tick %d: %w", rep.Tick, err)
		}
	}

	if n := tracker.Len(); n > 0 {
		rep.Deferred = n
		e.deferred.Add(1)
		e.logger.Warn("render passes did not settle; deferring to next tick",
			"tick", rep.Tick, "maxPasses", e.cfg.MaxPassesPerTick, "deferred", n)
		e.RequestTick()
	}
	return rep, nil
}

// DeferredTicks returns how many ticks hit MaxPassesPerTick.
func (e *Engine) DeferredTicks() uint64 { return e.deferred.Load() }

// Run ticks whenever work is requested until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.RequestTick()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.wake:
		}
		if _, err := e.Tick(); err != nil {
			e.logger.Error("tick failed", "error", err)
		}
	}
}

// Shutdown stops the debug server and runtime sampler, closes every
// window and shuts the task runner down.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.closed.Swap(true) {
		return nil
	}
	e.StopDebugServer(ctx)
	e.sampler.stop()

	e.tickLock.Lock()
	defer e.tickLock.Unlock()
	return e.rt.Shutdown(ctx)
}
