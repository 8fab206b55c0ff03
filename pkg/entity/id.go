package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies an entity and encodes a generation for stale-handle
// detection. The zero ID never refers to a live entity.
type ID struct {
	index      uint32
	generation uint32
}

// Index returns the backing slot index of the entity.
func (id ID) Index() uint32 {
	return id.index
}

// Generation returns the generation counter associated with the entity.
func (id ID) Generation() uint32 {
	return id.generation
}

// IsZero reports whether the identifier is the zero value.
func (id ID) IsZero() bool {
	return id.index == 0 && id.generation == 0
}

// String renders the identifier as "index v generation", e.g. "4v2".
func (id ID) String() string {
	if id.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%dv%d", id.index, id.generation)
}

// IDFromParts constructs an identifier from raw components.
func IDFromParts(index, generation uint32) ID {
	return ID{index: index, generation: generation}
}

// ID returns id, so a bare ID satisfies Entity.
func (id ID) ID() ID { return id }

// Entity is anything that names an entity.
type Entity interface {
	ID() ID
}

// Handle is a typed reference to an entity holding a *T payload.
// Both *Ref[T] and WeakRef[T] satisfy it.
type Handle[T any] interface {
	Entity
	Store() *Store
	payload() *T
}

// Disposable is implemented by payloads that hold resources. Dispose is
// called once, after the entity is destroyed and outside any store lock.
type Disposable interface {
	Dispose()
}

// MarshalText implements encoding.TextMarshaler using the String form.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the String form.
func (id *ID) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "none" || s == "" {
		*id = ID{}
		return nil
	}
	index, gen, ok := strings.Cut(s, "v")
	if !ok {
		return fmt.Errorf("entity: malformed id %q", s)
	}
	i, err := strconv.ParseUint(index, 10, 32)
	if err != nil {
		return fmt.Errorf("entity: malformed id %q: %w", s, err)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil {
		return fmt.Errorf("entity: malformed id %q: %w", s, err)
	}
	*id = ID{index: uint32(i), generation: uint32(g)}
	return nil
}
