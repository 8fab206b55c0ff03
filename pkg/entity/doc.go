// Package entity implements the entity store: the single owner of all
// application state in a reactor program.
//
// Every payload lives in a slot of a [Store] and is addressed by an [ID]
// made of a slot index and a generation. Holders never keep the payload
// itself; they keep a strong [Ref] (which keeps the entity alive) or a
// [WeakRef] (which does not). When the last strong reference is released
// the payload is dropped and the slot generation is bumped, so every
// outstanding handle resolves to [errors.ErrNotFound] instead of touching
// recycled memory.
//
// # Access
//
// Payloads are only reachable through [Update] and [Read], which bracket a
// synchronous callback with begin/end access:
//
//	counter := entity.New(store, Counter{})
//	sess := store.NewSession()
//	err := entity.Update(sess, counter, func(c *Counter) error {
//	    c.Count++
//	    return nil
//	})
//
// A [Session] is one chain of access: the UI loop owns one, and every
// async task owns its own. The outermost call of a session takes the
// store's access lock (exclusive for Update, shared for Read) and nested
// calls reuse it, so nested accesses across entities never wait on each
// other. Updating an entity from inside its own Update (or inside a Read
// of it) fails with [errors.ErrReentrantAccess].
package entity
