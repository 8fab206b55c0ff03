package entity

import "sync/atomic"

// Ref is a strong reference: while any strong reference to an entity is
// unreleased, the entity stays alive.
//
// Each Ref is one holder. Clone mints another holder; Release drops this
// one. Releasing the last holder destroys the entity.
type Ref[T any] struct {
	id       ID
	store    *Store
	released atomic.Bool
}

// ID returns the entity identifier.
func (r *Ref[T]) ID() ID { return r.id }

// Store returns the store that owns the entity.
func (r *Ref[T]) Store() *Store { return r.store }

func (r *Ref[T]) payload() *T { return nil }

// String implements fmt.Stringer.
func (r *Ref[T]) String() string { return r.id.String() }

// Clone returns a new strong reference to the same entity.
// Cloning a released reference panics.
func (r *Ref[T]) Clone() *Ref[T] {
	if r.released.Load() || !r.store.retain(r.id) {
		panic("entity: Clone of released reference " + r.id.String())
	}
	return &Ref[T]{id: r.id, store: r.store}
}

// Release drops this strong holder. Calling Release more than once on the
// same Ref is a no-op.
func (r *Ref[T]) Release() {
	if r == nil || r.released.Swap(true) {
		return
	}
	r.store.release(r.id)
}

// Released reports whether Release has been called on this Ref.
func (r *Ref[T]) Released() bool {
	return r.released.Load()
}

// Downgrade returns a weak reference to the same entity.
func (r *Ref[T]) Downgrade() WeakRef[T] {
	return WeakRef[T]{id: r.id, store: r.store}
}

// WeakRef references an entity without keeping it alive. It records the
// generation at capture, so once the entity is destroyed every use of the
// WeakRef reports the entity as gone.
type WeakRef[T any] struct {
	id    ID
	store *Store
}

// ID returns the entity identifier captured by the reference.
func (w WeakRef[T]) ID() ID { return w.id }

// Store returns the store the reference points into.
func (w WeakRef[T]) Store() *Store { return w.store }

func (w WeakRef[T]) payload() *T { return nil }

// String implements fmt.Stringer.
func (w WeakRef[T]) String() string { return w.id.String() + "(weak)" }

// IsZero reports whether w is the zero WeakRef.
func (w WeakRef[T]) IsZero() bool { return w.store == nil }

// Alive reports whether the referenced entity still exists.
func (w WeakRef[T]) Alive() bool {
	return w.store != nil && w.store.Alive(w.id)
}

// Upgrade returns a new strong reference if the entity is still alive.
func (w WeakRef[T]) Upgrade() (*Ref[T], bool) {
	if w.store == nil || !w.store.retain(w.id) {
		return nil, false
	}
	return &Ref[T]{id: w.id, store: w.store}, true
}
