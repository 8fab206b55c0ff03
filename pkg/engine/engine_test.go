package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-drift/reactor/pkg/core"
	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/errors"
	"github.com/go-drift/reactor/pkg/logging"
	"github.com/go-drift/reactor/pkg/view"
)

type Label struct {
	Text    string
	Renders int
}

func (l *Label) Render(*core.Context) view.Node {
	l.Renders++
	return view.Text(l.Text)
}

// Echo notifies itself from every render, so passes never settle.
type Echo struct{}

func (*Echo) Render(cx *core.Context) view.Node {
	cx.NotifySelf()
	return view.Text("echo")
}

type Faulty struct{}

func (*Faulty) Render(*core.Context) view.Node { panic("faulty view") }

type frameLog struct {
	mu     sync.Mutex
	frames []core.Frame
	signal chan struct{}
}

func newFrameLog() *frameLog { return &frameLog{signal: make(chan struct{}, 64)} }

func (l *frameLog) Composite(frames []core.Frame) error {
	l.mu.Lock()
	l.frames = append(l.frames, frames...)
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
	return nil
}

func (l *frameLog) all() []core.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Frame(nil), l.frames...)
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	e := New(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return e
}

func TestDispatchRunsOnNextTick(t *testing.T) {
	log := newFrameLog()
	e := newTestEngine(t, Config{Compositor: log})
	label := entity.New(e.Runtime().Store(), Label{Text: "a"})
	if _, err := core.OpenWindow(e.Runtime(), "main", label); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Dispatch(func(cx *core.Context) {
			_ = core.Update(cx, label, func(l *Label, cx *core.Context) error {
				l.Text = "b"
				cx.NotifySelf()
				return nil
			})
		})
	}()
	<-done

	rep, err := e.Tick()
	if err != nil {
		t.Fatal(err)
	}
	if rep.Callbacks != 1 || rep.Passes != 1 {
		t.Errorf("report = %+v, want 1 callback and 1 pass", rep)
	}
	frames := log.all()
	if len(frames) != 1 || frames[0].Tree.Text != "b" {
		t.Fatalf("frames = %+v", frames)
	}
}

func TestTickBoundsCascadingPasses(t *testing.T) {
	e := newTestEngine(t, Config{MaxPassesPerTick: 3})
	echo := entity.New(e.Runtime().Store(), Echo{})
	if _, err := core.OpenWindow(e.Runtime(), "main", echo); err != nil {
		t.Fatal(err)
	}

	rep, err := e.Tick()
	if err != nil {
		t.Fatal(err)
	}
	if rep.Passes != 3 || rep.Deferred != 1 {
		t.Errorf("report = %+v, want 3 passes and 1 deferred id", rep)
	}
	if e.DeferredTicks() != 1 {
		t.Errorf("DeferredTicks() = %d, want 1", e.DeferredTicks())
	}
	if got := len(e.Trace().Snapshot().Samples); got != 3 {
		t.Errorf("trace samples = %d, want 3", got)
	}
}

func TestDefaultMaxPasses(t *testing.T) {
	e := newTestEngine(t, Config{})
	if e.cfg.MaxPassesPerTick != DefaultMaxPassesPerTick {
		t.Errorf("MaxPassesPerTick = %d, want %d", e.cfg.MaxPassesPerTick, DefaultMaxPassesPerTick)
	}
}

func TestTickReturnsRenderError(t *testing.T) {
	errors.SetHandler(&errors.LogHandler{Logger: logging.Discard()})
	defer errors.SetHandler(nil)

	log := newFrameLog()
	e := newTestEngine(t, Config{Compositor: log})
	faulty := entity.New(e.Runtime().Store(), Faulty{})
	if _, err := core.OpenWindow(e.Runtime(), "main", faulty); err != nil {
		t.Fatal(err)
	}

	_, err := e.Tick()
	var rerr *errors.RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want RenderError", err)
	}
	if len(log.all()) != 0 {
		t.Error("frames from an aborted pass reached the compositor")
	}
	samples := e.Trace().Snapshot().Samples
	if len(samples) != 1 || samples[0].Error == "" {
		t.Errorf("trace = %+v, want one failed sample", samples)
	}
}

func TestDispatchPanicIsRecovered(t *testing.T) {
	errors.SetHandler(&errors.LogHandler{Logger: logging.Discard()})
	defer errors.SetHandler(nil)

	e := newTestEngine(t, Config{})
	ran := false
	e.Dispatch(func(*core.Context) { panic("bad input") })
	e.Dispatch(func(*core.Context) { ran = true })

	rep, err := e.Tick()
	if err != nil {
		t.Fatal(err)
	}
	if rep.Callbacks != 2 || !ran {
		t.Errorf("report = %+v, ran = %v", rep, ran)
	}
}

func TestTickStartsTasks(t *testing.T) {
	e := newTestEngine(t, Config{})
	var h interface{ Done() <-chan struct{} }
	e.Update(func(cx *core.Context) {
		h = core.Spawn(cx, func(*core.AsyncContext) (int, error) { return 1, nil })
	})

	rep, err := e.Tick()
	if err != nil {
		t.Fatal(err)
	}
	if rep.TasksStarted != 1 {
		t.Errorf("TasksStarted = %d, want 1", rep.TasksStarted)
	}
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
}

func TestRunRendersOnDemand(t *testing.T) {
	log := newFrameLog()
	e := newTestEngine(t, Config{Compositor: log})
	label := entity.New(e.Runtime().Store(), Label{Text: "start"})
	if _, err := core.OpenWindow(e.Runtime(), "main", label); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- e.Run(ctx) }()

	waitFrame := func(text string) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			frames := log.all()
			if n := len(frames); n > 0 && frames[n-1].Tree.Text == text {
				return
			}
			select {
			case <-log.signal:
			case <-deadline:
				t.Fatalf("no frame with %q; got %+v", text, log.all())
			}
		}
	}
	waitFrame("start")

	// A task notifies from its own goroutine; the engine wakes and renders.
	e.Dispatch(func(cx *core.Context) {
		core.Spawn(cx, func(acx *core.AsyncContext) (struct{}, error) {
			if err := acx.Yield(); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, core.Update(acx, label, func(l *Label, cx *core.Context) error {
				l.Text = "async"
				cx.NotifySelf()
				return nil
			})
		}).Detach()
	})
	waitFrame("async")

	cancel()
	if err := <-stopped; err != context.Canceled {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	e := New(Config{Logger: logging.Discard()})
	root := entity.New(e.Runtime().Store(), Label{})
	if _, err := core.OpenWindow(e.Runtime(), "main", root); err != nil {
		t.Fatal(err)
	}
	root.Release()

	ctx := context.Background()
	if err := e.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if n := e.Runtime().Store().Len(); n != 0 {
		t.Errorf("live entities after shutdown = %d, want 0", n)
	}
	e.Dispatch(func(*core.Context) { t.Error("dispatch after shutdown ran") })
	if e.drainDispatchQueue() != nil {
		t.Error("dispatch after shutdown was queued")
	}
}
