package core

import (
	"fmt"

	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/view"
)

// View is the capability of payloads that can be rendered. Render runs
// with shared access to the view's own payload and must not suspend or
// mutate entities.
type View interface {
	Render(cx *Context) view.Node
}

// Frame is one rendered dirty root handed to the compositor.
type Frame struct {
	Window *Window
	// Root is the dirty root that was rendered.
	Root entity.ID
	Pass uint64
	// Tree is Root's subtree with embedded views expanded.
	Tree view.Node
	// Screen is the window's whole tree after the pass.
	Screen view.Node
}

// Compositor consumes the frames produced by a render pass.
type Compositor interface {
	Composite(frames []Frame) error
}

// CompositorFunc adapts a function to Compositor.
type CompositorFunc func(frames []Frame) error

// Composite calls f(frames).
func (f CompositorFunc) Composite(frames []Frame) error { return f(frames) }

// Window is an open top-level surface rooted at a view entity. It keeps
// its root alive until Close.
type Window struct {
	rt      *Runtime
	id      int
	title   string
	root    entity.ID
	release func()
	closed  bool
}

// OpenWindow mounts root as the root view of a new window and marks it
// dirty so the next pass renders it. The payload type must implement View.
func OpenWindow[T any](rt *Runtime, title string, root *entity.Ref[T]) (*Window, error) {
	if _, ok := any((*T)(nil)).(View); !ok {
		return nil, fmt.Errorf("core: OpenWindow: %T does not implement View", (*T)(nil))
	}
	if !rt.store.Alive(root.ID()) {
		return nil, fmt.Errorf("core: OpenWindow: root %v is gone", root.ID())
	}
	hold := root.Clone()

	rt.mu.Lock()
	rt.nextWindow++
	w := &Window{
		rt:      rt,
		id:      rt.nextWindow,
		title:   title,
		root:    hold.ID(),
		release: hold.Release,
	}
	rt.windows = append(rt.windows, w)
	rt.mu.Unlock()

	rt.scheduler.mountRoot(w)
	rt.tracker.Notify(w.root)
	rt.logger.Debug("window opened", "window", w.id, "title", title, "root", w.root)
	return w, nil
}

// ID returns the runtime-unique window number.
func (w *Window) ID() int { return w.id }

// Title returns the window title.
func (w *Window) Title() string { return w.title }

// Root returns the root view entity.
func (w *Window) Root() entity.ID { return w.root }

// Tree returns the window's current tree as of the last pass.
func (w *Window) Tree() view.Node {
	return w.rt.scheduler.screen(w.root)
}

// Close unmounts the window and releases its hold on the root.
// Closing twice is a no-op.
func (w *Window) Close() {
	rt := w.rt
	rt.mu.Lock()
	if w.closed {
		rt.mu.Unlock()
		return
	}
	w.closed = true
	for i, o := range rt.windows {
		if o == w {
			rt.windows = append(rt.windows[:i], rt.windows[i+1:]...)
			break
		}
	}
	rt.mu.Unlock()

	rt.scheduler.unmount(w.root)
	w.release()
	rt.logger.Debug("window closed", "window", w.id)
}

// Closed reports whether Close was called.
func (w *Window) Closed() bool {
	w.rt.mu.Lock()
	defer w.rt.mu.Unlock()
	return w.closed
}
