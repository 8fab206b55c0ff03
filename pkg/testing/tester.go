package testing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-drift/reactor/pkg/core"
	"github.com/go-drift/reactor/pkg/engine"
	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/logging"
	"github.com/go-drift/reactor/pkg/view"
)

// ErrSettleTimeout is returned when PumpAndSettle exceeds its timeout.
var ErrSettleTimeout = errors.New("PumpAndSettle timed out: runtime did not settle")

// Recorder is a compositor that keeps every frame it receives.
type Recorder struct {
	mu     sync.Mutex
	frames []core.Frame
}

// Composite implements core.Compositor.
func (r *Recorder) Composite(frames []core.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frames...)
	return nil
}

// Frames returns the recorded frames in delivery order.
func (r *Recorder) Frames() []core.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Frame(nil), r.frames...)
}

// Reset drops the recorded frames.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}

// Tester drives an engine deterministically: time comes from a FakeClock,
// frames go to a Recorder and ticks happen only when Pump is called.
type Tester struct {
	engine   *engine.Engine
	clock    *FakeClock
	recorder *Recorder
	refs     []func()
}

// NewTester creates a tester with a discarding logger. Call Cleanup when
// done, or use NewTesterWithT instead.
func NewTester() *Tester {
	clk := NewFakeClock()
	rec := &Recorder{}
	return &Tester{
		engine: engine.New(engine.Config{
			Logger:     logging.Discard(),
			Compositor: rec,
			Clock:      clk,
		}),
		clock:    clk,
		recorder: rec,
	}
}

// NewTesterWithT creates a tester that cleans up via t.Cleanup.
// This is the recommended constructor for tests.
func NewTesterWithT(t *testing.T) *Tester {
	tester := NewTester()
	t.Cleanup(tester.Cleanup)
	return tester
}

// Cleanup releases mounted roots and shuts the engine down.
func (t *Tester) Cleanup() {
	for _, release := range t.refs {
		release()
	}
	t.refs = nil
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = t.engine.Shutdown(ctx)
}

// Engine returns the engine under test.
func (t *Tester) Engine() *engine.Engine { return t.engine }

// Runtime returns the engine's runtime.
func (t *Tester) Runtime() *core.Runtime { return t.engine.Runtime() }

// Clock returns the fake clock for advancing task timers.
func (t *Tester) Clock() *FakeClock { return t.clock }

// Recorder returns the compositor receiving frames.
func (t *Tester) Recorder() *Recorder { return t.recorder }

// Mount creates an entity holding root, opens a window on it and pumps one
// tick. The returned ref stays valid until Cleanup.
func Mount[T any](t *Tester, root T) (*entity.Ref[T], *core.Window, error) {
	ref := entity.New(t.Runtime().Store(), root)
	t.refs = append(t.refs, ref.Release)
	w, err := core.OpenWindow(t.Runtime(), "test", ref)
	if err != nil {
		return ref, nil, err
	}
	if _, err := t.Pump(); err != nil {
		return ref, w, err
	}
	return ref, w, nil
}

// Update runs fn with mutable access, as an event handler would.
func (t *Tester) Update(fn func(cx *core.Context)) {
	t.engine.Update(fn)
}

// Dispatch queues fn for the next Pump.
func (t *Tester) Dispatch(fn func(cx *core.Context)) {
	t.engine.Dispatch(fn)
}

// Pump runs a single engine tick.
func (t *Tester) Pump() (engine.TickReport, error) {
	return t.engine.Tick()
}

// PumpAndSettle pumps until nothing is dirty, no task is waiting to start
// and no task is running. Tasks suspended on the fake clock count as
// settled. timeout is real time.
func (t *Tester) PumpAndSettle(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := t.Pump(); err != nil {
			return err
		}
		if !t.needsWork() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrSettleTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

func (t *Tester) needsWork() bool {
	rt := t.Runtime()
	stats := rt.Runner().Stats()
	return rt.Tracker().Len() > 0 || rt.Runner().Pending() > 0 || stats.Scheduled > 0 || stats.Running > 0
}

// Screen returns the assembled tree of the first open window.
func (t *Tester) Screen() view.Node {
	windows := t.Runtime().Windows()
	if len(windows) == 0 {
		return view.Empty()
	}
	return windows[0].Tree()
}

// Find evaluates a finder against the screens of all open windows.
func (t *Tester) Find(finder Finder) FinderResult {
	var nodes []view.Node
	for _, w := range t.Runtime().Windows() {
		nodes = append(nodes, finder.Evaluate(w.Tree())...)
	}
	return FinderResult{nodes: nodes, finder: finder}
}
