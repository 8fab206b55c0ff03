package entity

import (
	stderrors "errors"

	"github.com/go-drift/reactor/pkg/errors"
)

type accessMode uint8

const (
	modeNone accessMode = iota
	modeShared
	modeExclusive
)

var errForeignStore = stderrors.New("handle belongs to a different store")

// Session is one chain of store access. The outermost Update or Read of a
// session acquires the store's access lock and nested calls reuse it.
//
// A Session is not safe for concurrent use: the UI loop owns one and every
// async task owns its own.
type Session struct {
	store *Store
	mode  accessMode
	depth int
}

// NewSession creates an access session on the store.
func (s *Store) NewSession() *Session {
	return &Session{store: s}
}

// Store returns the store this session accesses.
func (s *Session) Store() *Store { return s.store }

// Holding reports whether the session is inside an Update or Read.
func (s *Session) Holding() bool { return s.depth > 0 }

// Exclusive reports whether the session currently holds exclusive access.
func (s *Session) Exclusive() bool { return s.mode == modeExclusive }

func (s *Session) enter(exclusive bool, op string, id ID) error {
	switch s.mode {
	case modeNone:
		if exclusive {
			s.store.access.Lock()
			s.mode = modeExclusive
		} else {
			s.store.access.RLock()
			s.mode = modeShared
		}
	case modeShared:
		if exclusive {
			return errors.Reentrant(op, id, "exclusive access requested while holding shared access")
		}
	}
	s.depth++
	return nil
}

func (s *Session) leave() {
	s.depth--
	if s.depth > 0 {
		return
	}
	switch s.mode {
	case modeExclusive:
		s.store.access.Unlock()
	case modeShared:
		s.store.access.RUnlock()
	}
	s.mode = modeNone
}

// Update grants fn exclusive access to the payload behind h.
//
// It fails with errors.ErrNotFound when the entity was destroyed, and with
// errors.ErrReentrantAccess when the entity is already being updated or
// read by this session, or when the session only holds shared access.
// An error returned by fn is passed through unchanged.
func Update[T any](sess *Session, h Handle[T], fn func(*T) error) error {
	return sess.access(true, "entity.Update", h, func(v any) error {
		return fn(v.(*T))
	})
}

// Read grants fn shared access to the payload behind h. Reads from
// different sessions run concurrently; a Read nested inside an Update of
// the same entity by the same session is permitted.
func Read[T any](sess *Session, h Handle[T], fn func(*T)) error {
	return sess.access(false, "entity.Read", h, func(v any) error {
		fn(v.(*T))
		return nil
	})
}

// ReadValue is Read for callbacks that derive a value.
func ReadValue[T, V any](sess *Session, h Handle[T], fn func(*T) V) (V, error) {
	var out V
	err := Read(sess, h, func(p *T) { out = fn(p) })
	return out, err
}

// ReadAny grants fn shared access to an untyped payload. It is used by
// code that dispatches on payload capabilities rather than concrete types.
func ReadAny(sess *Session, e Entity, fn func(any)) error {
	return sess.accessID(false, "entity.Read", e.ID(), func(v any) error {
		fn(v)
		return nil
	})
}

func (s *Session) access(exclusive bool, op string, h interface {
	Entity
	Store() *Store
}, fn func(any) error) error {
	if h.Store() != s.store {
		return errors.New(op, errors.KindNotFound, h.ID(), errForeignStore)
	}
	return s.accessID(exclusive, op, h.ID(), fn)
}

func (s *Session) accessID(exclusive bool, op string, id ID, fn func(any) error) error {
	if err := s.enter(exclusive, op, id); err != nil {
		return err
	}
	defer s.leave()

	st := s.store
	st.mu.Lock()
	sl := st.lookupLocked(id)
	if sl == nil {
		st.mu.Unlock()
		return errors.NotFound(op, id)
	}
	if exclusive {
		if sl.leased {
			st.mu.Unlock()
			return errors.Reentrant(op, id, "entity is already being updated")
		}
		if sl.readers > 0 {
			st.mu.Unlock()
			return errors.Reentrant(op, id, "entity is being read")
		}
		sl.leased = true
	} else {
		sl.readers++
	}
	value := sl.value
	st.mu.Unlock()

	defer st.endAccess(id, exclusive)
	return fn(value)
}
