// Package task runs suspendable async work for the reactor runtime.
//
// A task is a function of a [*Scope] that runs on its own goroutine. It
// only gives up control at explicit suspension points on the Scope
// ([Scope.Sleep], [Scope.Yield], [Scope.Suspend], [Await], [Join],
// [Race], [Scope.Compute]). Each suspension point checks the task's
// cancellation flag before and after waiting; a cancelled task observes
// [errors.ErrCancelled] there and is expected to return it:
//
//	h := task.Spawn(runner, func(s *task.Scope) (string, error) {
//	    if err := s.Sleep(time.Second); err != nil {
//	        return "", err
//	    }
//	    return "done", nil
//	})
//	runner.StartPending()
//	v, err := h.Await(ctx)
//
// Spawned tasks start at the next scheduler opportunity ([Runner.StartPending]
// or [Runner.Run]), never synchronously.
//
// # Handles
//
// [Handle.Detach] turns a task into fire-and-forget background work. A
// handle released with [Handle.Drop], or one that becomes unreachable,
// without Detach cancels its task at the next suspension point.
package task
