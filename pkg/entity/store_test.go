package entity

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-drift/reactor/pkg/errors"
)

type counter struct {
	Count int
}

type disposing struct {
	disposed *bool
}

func (d *disposing) Dispose() { *d.disposed = true }

func TestReadSucceedsUntilLastRelease(t *testing.T) {
	store := NewStore()
	sess := store.NewSession()
	ref := New(store, counter{Count: 7})
	second := ref.Clone()

	for i, r := range []*Ref[counter]{ref, second} {
		got, err := ReadValue(sess, r, func(c *counter) int { return c.Count })
		if err != nil {
			t.Fatalf("read %d: unexpected error %v", i, err)
		}
		if got != 7 {
			t.Fatalf("read %d: got %d, want 7", i, got)
		}
	}

	ref.Release()
	if err := Read(sess, second, func(*counter) {}); err != nil {
		t.Fatalf("read after first release: %v", err)
	}

	second.Release()
	err := Read(sess, second, func(*counter) {})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("read after last release: got %v, want ErrNotFound", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestReleaseIsIdempotentPerHandle(t *testing.T) {
	store := NewStore()
	ref := New(store, counter{})
	other := ref.Clone()

	ref.Release()
	ref.Release()

	if !store.Alive(other.ID()) {
		t.Fatal("double Release of one handle must not drop another holder")
	}
	other.Release()
	if store.Alive(other.ID()) {
		t.Fatal("entity should be destroyed after last release")
	}
}

func TestSlotReuseBumpsGeneration(t *testing.T) {
	store := NewStore()
	first := New(store, counter{Count: 1})
	stale := first.Downgrade()
	first.Release()

	second := New(store, counter{Count: 2})
	defer second.Release()

	if second.ID().Index() != stale.ID().Index() {
		t.Fatalf("expected slot reuse, got index %d and %d", second.ID().Index(), stale.ID().Index())
	}
	if second.ID() == stale.ID() {
		t.Fatal("reused slot must carry a new generation")
	}

	sess := store.NewSession()
	err := Update(sess, stale, func(c *counter) error {
		t.Fatal("stale handle reached the new payload")
		return nil
	})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestUpgradeDowngradeRoundTrip(t *testing.T) {
	store := NewStore()
	ref := New(store, counter{})

	up, ok := ref.Downgrade().Upgrade()
	if !ok {
		t.Fatal("upgrade of live entity failed")
	}
	if up.ID() != ref.ID() {
		t.Errorf("upgraded ID = %v, want %v", up.ID(), ref.ID())
	}

	weak := ref.Downgrade()
	up.Release()
	ref.Release()

	if _, ok := weak.Upgrade(); ok {
		t.Error("upgrade after destruction should yield nothing")
	}
	if weak.Alive() {
		t.Error("weak reference should report the entity as gone")
	}
}

func TestNestedUpdateIsReentrant(t *testing.T) {
	payloads := []any{counter{}, counter{Count: -1}, disposing{disposed: new(bool)}}
	for _, p := range payloads {
		store := NewStore()
		sess := store.NewSession()
		ref := New(store, p)

		var inner error
		err := Update(sess, ref, func(*any) error {
			inner = Update(sess, ref, func(*any) error { return nil })
			return nil
		})
		if err != nil {
			t.Fatalf("outer update: %v", err)
		}
		if !errors.Is(inner, errors.ErrReentrantAccess) {
			t.Fatalf("payload %T: nested update got %v, want ErrReentrantAccess", p, inner)
		}
		ref.Release()
	}
}

func TestUpdateInsideReadIsReentrant(t *testing.T) {
	store := NewStore()
	sess := store.NewSession()
	a := New(store, counter{})
	b := New(store, counter{})

	var sameEntity, otherEntity error
	err := Read(sess, a, func(*counter) {
		sameEntity = Update(sess, a, func(*counter) error { return nil })
		otherEntity = Update(sess, b, func(*counter) error { return nil })
	})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(sameEntity, errors.ErrReentrantAccess) {
		t.Errorf("update inside read of same entity: got %v", sameEntity)
	}
	if !errors.Is(otherEntity, errors.ErrReentrantAccess) {
		t.Errorf("update while holding shared access: got %v", otherEntity)
	}
}

func TestReadNestedInUpdate(t *testing.T) {
	store := NewStore()
	sess := store.NewSession()
	ref := New(store, counter{})

	var observed int
	err := Update(sess, ref, func(c *counter) error {
		c.Count = 3
		return Read(sess, ref, func(view *counter) { observed = view.Count })
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if observed != 3 {
		t.Errorf("nested read observed %d, want 3", observed)
	}
	if sess.Holding() {
		t.Error("session should not hold access after the outer call returns")
	}
}

func TestNestedUpdateAcrossEntities(t *testing.T) {
	store := NewStore()
	sess := store.NewSession()
	parent := New(store, counter{})
	child := New(store, counter{})

	err := Update(sess, parent, func(p *counter) error {
		p.Count++
		return Update(sess, child, func(c *counter) error {
			c.Count = p.Count * 10
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := ReadValue(sess, child, func(c *counter) int { return c.Count })
	if got != 10 {
		t.Errorf("child count = %d, want 10", got)
	}
}

func TestReleaseDuringUpdateDefersDestroy(t *testing.T) {
	store := NewStore()
	sess := store.NewSession()
	disposed := false
	ref := New(store, disposing{disposed: &disposed})
	weak := ref.Downgrade()

	err := Update(sess, ref, func(d *disposing) error {
		ref.Release()
		if disposed {
			t.Error("payload disposed while leased")
		}
		if weak.Alive() {
			t.Error("released entity should not resolve while its destruction is pending")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !disposed {
		t.Error("payload should be disposed once the lease ends")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestOnDestroyHook(t *testing.T) {
	store := NewStore()
	var destroyed []ID
	unregister := store.OnDestroy(func(id ID) { destroyed = append(destroyed, id) })

	a := New(store, counter{})
	b := New(store, counter{})
	aID := a.ID()
	a.Release()
	unregister()
	b.Release()

	if diff := cmp.Diff([]ID{aID}, destroyed, cmp.AllowUnexported(ID{})); diff != "" {
		t.Errorf("destroyed ids mismatch (-want +got):\n%s", diff)
	}
}

func TestForeignStoreHandle(t *testing.T) {
	a, b := NewStore(), NewStore()
	ref := New(a, counter{})
	err := Read(b.NewSession(), ref, func(*counter) {})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSnapshot(t *testing.T) {
	store := NewStore()
	a := New(store, counter{})
	b := New(store, "label")
	b2 := b.Clone()
	defer a.Release()
	defer b.Release()
	defer b2.Release()

	want := []Info{
		{ID: a.ID(), Type: "*entity.counter", Strong: 1},
		{ID: b.ID(), Type: "*string", Strong: 2},
	}
	if diff := cmp.Diff(want, store.Snapshot(), cmp.AllowUnexported(ID{})); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewStore()
	ref := New(store, counter{})
	defer ref.Release()

	const workers = 8
	const perWorker = 200
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := store.NewSession()
			for j := 0; j < perWorker; j++ {
				if j%4 == 0 {
					_ = Read(sess, ref, func(*counter) {})
					continue
				}
				if err := Update(sess, ref, func(c *counter) error {
					c.Count++
					return nil
				}); err != nil {
					t.Errorf("update: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, _ := ReadValue(store.NewSession(), ref, func(c *counter) int { return c.Count })
	want := workers * perWorker * 3 / 4
	if got != want {
		t.Errorf("count = %d, want %d", got, want)
	}
}

func TestClonePanicsAfterRelease(t *testing.T) {
	store := NewStore()
	ref := New(store, counter{})
	ref.Release()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	ref.Clone()
}

func TestReadAnyByID(t *testing.T) {
	store := NewStore()
	sess := store.NewSession()
	ref := New(store, counter{Count: 4})

	for _, e := range []Entity{ref, ref.ID()} {
		var got any
		if err := ReadAny(sess, e, func(v any) { got = v }); err != nil {
			t.Fatalf("ReadAny(%v): %v", e, err)
		}
		c, ok := got.(*counter)
		if !ok || c.Count != 4 {
			t.Errorf("ReadAny(%v) payload = %#v, want *counter with Count 4", e, got)
		}
	}

	id := ref.ID()
	ref.Release()
	err := ReadAny(sess, id, func(any) { t.Error("callback ran for a destroyed entity") })
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("ReadAny after release = %v, want ErrNotFound", err)
	}
}
