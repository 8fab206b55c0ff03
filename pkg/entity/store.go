package entity

import (
	"reflect"
	"sort"
	"sync"
)

type slot struct {
	value      any
	typeName   string
	generation uint32
	strong     int32
	alive      bool

	// leased is set while an Update callback runs. Leases only exist under
	// the exclusive access lock, so a lease always belongs to the session
	// currently holding that lock.
	leased  bool
	readers int32

	// pendingDrop marks an entity whose last strong reference was released
	// while it was leased or read; it is destroyed when access ends.
	pendingDrop bool
}

// Store owns every entity payload behind generation-checked IDs.
// All methods are safe for concurrent use.
type Store struct {
	// access is held by the outermost Update (exclusively) or Read (shared)
	// of a session.
	access sync.RWMutex

	mu     sync.Mutex
	slots  []*slot
	free   []uint32
	live   int
	hooks  map[uint64]func(ID)
	hookID uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	// Slot 0 is reserved so the zero ID is never live.
	return &Store{slots: []*slot{{}}}
}

// New stores v as a new entity and returns the first strong reference to it.
func New[T any](s *Store, v T) *Ref[T] {
	p := new(T)
	*p = v
	id := s.insert(p, reflect.TypeOf(p).String())
	return &Ref[T]{id: id, store: s}
}

func (s *Store) insert(value any, typeName string) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var index uint32
	if n := len(s.free); n > 0 {
		index = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		index = uint32(len(s.slots))
		s.slots = append(s.slots, &slot{generation: 1})
	}

	sl := s.slots[index]
	sl.value = value
	sl.typeName = typeName
	sl.strong = 1
	sl.alive = true
	sl.leased = false
	sl.readers = 0
	sl.pendingDrop = false
	s.live++
	return ID{index: index, generation: sl.generation}
}

// lookupLocked returns the slot for id if it is live and not being
// destroyed. s.mu must be held.
func (s *Store) lookupLocked(id ID) *slot {
	if id.index == 0 || id.index >= uint32(len(s.slots)) {
		return nil
	}
	sl := s.slots[id.index]
	if !sl.alive || sl.pendingDrop || sl.generation != id.generation {
		return nil
	}
	return sl
}

// Alive reports whether id refers to a live entity.
func (s *Store) Alive(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(id) != nil
}

// Len returns the number of live entities.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// TypeName returns the payload type of a live entity, e.g. "*app.Counter".
func (s *Store) TypeName(id ID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.lookupLocked(id)
	if sl == nil {
		return "", false
	}
	return sl.typeName, true
}

// OnDestroy registers fn to be called with the ID of every entity the store
// destroys. Hooks run outside store locks, after the payload's Dispose.
// Returns a function that unregisters the hook.
func (s *Store) OnDestroy(fn func(ID)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooks == nil {
		s.hooks = make(map[uint64]func(ID))
	}
	s.hookID++
	key := s.hookID
	s.hooks[key] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.hooks, key)
	}
}

// Info describes a live entity for diagnostics.
type Info struct {
	ID     ID     `json:"id"`
	Type   string `json:"type"`
	Strong int    `json:"strong"`
	Leased bool   `json:"leased,omitempty"`
}

// Snapshot lists all live entities ordered by slot index.
func (s *Store) Snapshot() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]Info, 0, s.live)
	for i, sl := range s.slots {
		if i == 0 || !sl.alive || sl.pendingDrop {
			continue
		}
		infos = append(infos, Info{
			ID:     ID{index: uint32(i), generation: sl.generation},
			Type:   sl.typeName,
			Strong: int(sl.strong),
			Leased: sl.leased,
		})
	}
	sort.Slice(infos, func(a, b int) bool { return infos[a].ID.index < infos[b].ID.index })
	return infos
}

// retain adds a strong holder. It fails if the entity is gone.
func (s *Store) retain(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.lookupLocked(id)
	if sl == nil {
		return false
	}
	sl.strong++
	return true
}

// release drops a strong holder and destroys the entity when it was the
// last one, or defers destruction until current access ends.
func (s *Store) release(id ID) {
	s.mu.Lock()
	sl := s.lookupLocked(id)
	if sl == nil {
		s.mu.Unlock()
		return
	}
	sl.strong--
	if sl.strong > 0 {
		s.mu.Unlock()
		return
	}
	if sl.leased || sl.readers > 0 {
		sl.pendingDrop = true
		s.mu.Unlock()
		return
	}
	value, hooks := s.destroyLocked(id.index)
	s.mu.Unlock()
	finalize(id, value, hooks)
}

// endAccess clears a lease or read mark and performs a deferred destroy.
func (s *Store) endAccess(id ID, exclusive bool) {
	s.mu.Lock()
	if id.index >= uint32(len(s.slots)) {
		s.mu.Unlock()
		return
	}
	sl := s.slots[id.index]
	if sl.generation != id.generation {
		s.mu.Unlock()
		return
	}
	if exclusive {
		sl.leased = false
	} else {
		sl.readers--
	}
	if !sl.pendingDrop || sl.leased || sl.readers > 0 {
		s.mu.Unlock()
		return
	}
	value, hooks := s.destroyLocked(id.index)
	s.mu.Unlock()
	finalize(id, value, hooks)
}

func (s *Store) destroyLocked(index uint32) (any, []func(ID)) {
	sl := s.slots[index]
	value := sl.value
	sl.value = nil
	sl.typeName = ""
	sl.alive = false
	sl.pendingDrop = false
	sl.strong = 0
	sl.generation++
	s.free = append(s.free, index)
	s.live--

	hooks := make([]func(ID), 0, len(s.hooks))
	for _, fn := range s.hooks {
		hooks = append(hooks, fn)
	}
	return value, hooks
}

func finalize(id ID, value any, hooks []func(ID)) {
	if d, ok := value.(Disposable); ok {
		d.Dispose()
	}
	for _, fn := range hooks {
		fn(id)
	}
}
