package core

import (
	"log/slog"
	"time"

	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/task"
)

// Accessor is implemented by *Context and *AsyncContext. It carries the
// store session that entity access runs under.
type Accessor interface {
	accessSession() *entity.Session
	accessRuntime() *Runtime
	bind(id entity.ID) *Context
	observe(id entity.ID)
}

// Context is the capability token passed to mutation and render callbacks.
// It is only valid for the duration of the callback it was passed to.
type Context struct {
	rt     *Runtime
	sess   *entity.Session
	entity entity.ID

	// deps collects the ids read during a render.
	deps map[entity.ID]struct{}
}

// Entity returns the id of the entity the callback is bound to. It is the
// zero ID for contexts created by Runtime.Update.
func (cx *Context) Entity() entity.ID { return cx.entity }

// Runtime returns the runtime the context belongs to.
func (cx *Context) Runtime() *Runtime { return cx.rt }

// Logger returns the runtime logger.
func (cx *Context) Logger() *slog.Logger { return cx.rt.logger }

// Notify marks e dirty for the next render pass. Notifying the same entity
// several times before the pass renders it once.
func (cx *Context) Notify(e entity.Entity) {
	cx.rt.tracker.Notify(e.ID())
}

// NotifySelf marks the bound entity dirty.
func (cx *Context) NotifySelf() {
	cx.rt.tracker.Notify(cx.entity)
}

// Rendering reports whether the context belongs to a render call.
func (cx *Context) Rendering() bool { return cx.deps != nil }

func (cx *Context) accessSession() *entity.Session { return cx.sess }
func (cx *Context) accessRuntime() *Runtime        { return cx.rt }

func (cx *Context) bind(id entity.ID) *Context {
	return &Context{rt: cx.rt, sess: cx.sess, entity: id}
}

func (cx *Context) observe(id entity.ID) {
	if cx.deps != nil && id != cx.entity {
		cx.deps[id] = struct{}{}
	}
}

// AsyncContext is the context of a spawned task. It owns a store session
// separate from the UI loop's, and every suspension point panics if that
// session still holds entity access.
type AsyncContext struct {
	rt    *Runtime
	scope *task.Scope
	sess  *entity.Session
	owner entity.ID
}

// Entity returns the id of the entity that spawned the task.
func (a *AsyncContext) Entity() entity.ID { return a.owner }

// Runtime returns the runtime the task belongs to.
func (a *AsyncContext) Runtime() *Runtime { return a.rt }

// Scope returns the task scope, for task.Await, task.Join and task.Race.
func (a *AsyncContext) Scope() *task.Scope { return a.scope }

// Notify marks e dirty for the next render pass.
func (a *AsyncContext) Notify(e entity.Entity) {
	a.rt.tracker.Notify(e.ID())
}

// Sleep suspends the task for d.
func (a *AsyncContext) Sleep(d time.Duration) error { return a.scope.Sleep(d) }

// Yield is a bare suspension point.
func (a *AsyncContext) Yield() error { return a.scope.Yield() }

// Cancelled reports whether the task was asked to stop.
func (a *AsyncContext) Cancelled() bool { return a.scope.Cancelled() }

func (a *AsyncContext) accessSession() *entity.Session { return a.sess }
func (a *AsyncContext) accessRuntime() *Runtime        { return a.rt }

func (a *AsyncContext) bind(id entity.ID) *Context {
	return &Context{rt: a.rt, sess: a.sess, entity: id}
}

func (a *AsyncContext) observe(entity.ID) {}

func (a *AsyncContext) checkNotHolding() {
	if a.sess.Holding() {
		panic("core: task reached a suspension point while holding entity access")
	}
}

// New stores v as a new entity in the runtime's store.
func New[T any](a Accessor, v T) *entity.Ref[T] {
	return entity.New(a.accessRuntime().store, v)
}

// Update grants fn exclusive access to the payload behind h, together with
// a Context bound to h. See entity.Update for the failure modes.
func Update[T any](a Accessor, h entity.Handle[T], fn func(*T, *Context) error) error {
	cx := a.bind(h.ID())
	return entity.Update(a.accessSession(), h, func(p *T) error {
		return fn(p, cx)
	})
}

// Read grants fn shared access to the payload behind h. Inside a render,
// the rendering view is re-rendered whenever h's entity is notified.
func Read[T any](a Accessor, h entity.Handle[T], fn func(*T)) error {
	a.observe(h.ID())
	return entity.Read(a.accessSession(), h, fn)
}

// ReadValue is Read for callbacks that derive a value.
func ReadValue[T, V any](a Accessor, h entity.Handle[T], fn func(*T) V) (V, error) {
	var out V
	err := Read(a, h, func(p *T) { out = fn(p) })
	return out, err
}

// Spawn schedules fn as a task. The task starts at the next scheduler
// opportunity and never inside Spawn.
func Spawn[T any](a Accessor, fn func(*AsyncContext) (T, error)) *task.Handle[T] {
	rt := a.accessRuntime()
	var owner entity.ID
	switch a := a.(type) {
	case *Context:
		owner = a.entity
	case *AsyncContext:
		owner = a.owner
	}
	return task.Spawn(rt.runner, func(s *task.Scope) (T, error) {
		acx := &AsyncContext{rt: rt, scope: s, sess: rt.store.NewSession(), owner: owner}
		s.BeforeSuspend(acx.checkNotHolding)
		return fn(acx)
	})
}

// Downgrade returns a weak reference to r's entity. It returns the zero
// WeakRef when r belongs to another runtime.
func Downgrade[T any](a Accessor, r *entity.Ref[T]) entity.WeakRef[T] {
	if r.Store() != a.accessRuntime().store {
		return entity.WeakRef[T]{}
	}
	return r.Downgrade()
}

// Upgrade returns a strong reference if w's entity is alive in the
// runtime's store.
func Upgrade[T any](a Accessor, w entity.WeakRef[T]) (*entity.Ref[T], bool) {
	if w.Store() != a.accessRuntime().store {
		return nil, false
	}
	return w.Upgrade()
}
