package persist

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-drift/reactor/pkg/errors"
)

type counter struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "reactor.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoad(t *testing.T) {
	s := openTemp(t)
	want := counter{Label: "clicks", Count: 3}
	if err := s.Save("counters", "a", want); err != nil {
		t.Fatal(err)
	}
	var got counter
	if err := s.Load("counters", "a", &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissing(t *testing.T) {
	s := openTemp(t)
	var c counter
	if err := s.Load("counters", "a", &c); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing bucket: err = %v, want ErrNotFound", err)
	}
	if err := s.Save("counters", "b", counter{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Load("counters", "a", &c); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing key: err = %v, want ErrNotFound", err)
	}
}

func TestKeysAndDelete(t *testing.T) {
	s := openTemp(t)
	for _, k := range []string{"c", "a", "b"} {
		if err := s.Save("counters", k, counter{Label: k}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Delete("counters", "b"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("absent", "x"); err != nil {
		t.Errorf("delete from missing bucket: %v", err)
	}
	keys, err := s.Keys("counters")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "c"}, keys); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
}

func TestNextSequence(t *testing.T) {
	s := openTemp(t)
	for want := uint64(1); want <= 3; want++ {
		got, err := s.NextSequence("ids")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("NextSequence() = %d, want %d", got, want)
		}
	}
}

func TestReopenKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactor.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save("counters", "a", counter{Count: 9}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	var c counter
	if err := s.Load("counters", "a", &c); err != nil {
		t.Fatal(err)
	}
	if c.Count != 9 {
		t.Errorf("Count = %d, want 9", c.Count)
	}
}
