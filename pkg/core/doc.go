// Package core connects entity state to rendering and async work.
//
// A Runtime owns the entity store, a ChangeTracker holding the dirty set,
// the render Scheduler and a task Runner. Application state lives in
// entities; payloads that implement View can be mounted in windows and
// embedded in each other's trees with view.Embed.
//
// # Mutation and notification
//
// State changes go through Update, which grants a callback exclusive
// access to one payload together with a Context:
//
//	core.Update(cx, counter, func(c *Counter, cx *core.Context) error {
//	    c.Count++
//	    cx.NotifySelf()
//	    return nil
//	})
//
// Notify marks an entity dirty. The next render pass re-renders every
// mounted view that is dirty or that read a dirty entity through Read
// during its last render, once, ancestors first.
//
// # Render passes
//
// A pass drains the dirty set, renders, and hands one Frame per dirty root
// to the Compositor. Notifications raised while a pass renders are left
// for the next pass. A panic inside Render aborts the pass and is reported
// as an errors.RenderError; no frame of that pass reaches the compositor.
//
// # Async work
//
// Spawn schedules a task that receives an AsyncContext. The task has its
// own store session and must re-request access after every suspension
// point:
//
//	weak := core.Downgrade(cx, doc)
//	core.Spawn(cx, func(acx *core.AsyncContext) (struct{}, error) {
//	    if err := acx.Sleep(time.Second); err != nil {
//	        return struct{}{}, err
//	    }
//	    return struct{}{}, core.Update(acx, weak, func(d *Doc, cx *core.Context) error {
//	        d.Saved = true
//	        cx.NotifySelf()
//	        return nil
//	    })
//	})
//
// If doc was destroyed while the task slept, Update fails with
// errors.ErrNotFound.
package core
