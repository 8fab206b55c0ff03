package core

import (
	"sync"

	"github.com/go-drift/reactor/pkg/entity"
)

// ChangeTracker records which entities were notified since the last render
// pass. It is safe for concurrent use: async tasks notify from their own
// goroutines.
type ChangeTracker struct {
	dirty    []entity.ID
	dirtySet map[entity.ID]struct{}
	mu       sync.Mutex

	// onNeedsFrame is called when an id is newly marked dirty, so the
	// owner of the render loop can schedule a pass.
	onNeedsFrame func()
}

// NewChangeTracker creates a tracker. onNeedsFrame may be nil.
func NewChangeTracker(onNeedsFrame func()) *ChangeTracker {
	return &ChangeTracker{onNeedsFrame: onNeedsFrame}
}

// Notify marks id dirty. Repeated notifications before the next Drain
// collapse into one. It reports whether id was newly added.
func (t *ChangeTracker) Notify(id entity.ID) bool {
	if id.IsZero() {
		return false
	}
	added := func() bool {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.dirtySet[id]; ok {
			return false
		}
		if t.dirtySet == nil {
			t.dirtySet = make(map[entity.ID]struct{})
		}
		t.dirtySet[id] = struct{}{}
		t.dirty = append(t.dirty, id)
		return true
	}()

	if added && t.onNeedsFrame != nil {
		t.onNeedsFrame()
	}
	return added
}

// Drain atomically empties the dirty set and returns its ids in
// notification order.
func (t *ChangeTracker) Drain() []entity.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	dirty := t.dirty
	t.dirty = nil
	clear(t.dirtySet)
	return dirty
}

// Len returns the number of pending dirty ids.
func (t *ChangeTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.dirty)
}

// Pending returns a copy of the pending dirty ids without draining them.
func (t *ChangeTracker) Pending() []entity.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]entity.ID(nil), t.dirty...)
}
