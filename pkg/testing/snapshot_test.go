package testing

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

type fakeT struct {
	fatals []string
	errors []string
}

func (f *fakeT) Helper()      {}
func (f *fakeT) Name() string { return "TestFake" }
func (f *fakeT) Fatalf(format string, args ...any) {
	f.fatals = append(f.fatals, fmt.Sprintf(format, args...))
}
func (f *fakeT) Errorf(format string, args ...any) {
	f.errors = append(f.errors, fmt.Sprintf(format, args...))
}

func TestCaptureSnapshot_Structure(t *testing.T) {
	tester := NewTesterWithT(t)
	mountList(t, tester, "a", "b")

	snap := tester.CaptureSnapshot()
	if snap.Pass != 1 || len(snap.Windows) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	tree := snap.Windows[0].Tree
	if tree.Kind != "element" || tree.Tag != "list" || tree.Props["border"] != "rounded" {
		t.Fatalf("root = %+v", tree)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(tree.Children))
	}
	embed := tree.Children[0]
	if embed.Kind != "embed" || embed.Entity != "*testing.Counter" {
		t.Errorf("embed = %+v", embed)
	}
	if len(embed.Children) != 1 || embed.Children[0].Key != "a" {
		t.Errorf("embedded tree = %+v", embed.Children)
	}
}

func TestSnapshot_UpdateAndMatch(t *testing.T) {
	t.Setenv(UpdateSnapshotsEnv, "")
	tester := NewTesterWithT(t)
	_, items := mountList(t, tester, "a")
	path := filepath.Join(t.TempDir(), "testdata", "list.snapshot.yaml")

	snap := tester.CaptureSnapshot()
	if err := snap.UpdateFile(path); err != nil {
		t.Fatal(err)
	}
	snap.MatchesFile(t, path)

	tester.Update(increment(items[0]))
	if _, err := tester.Pump(); err != nil {
		t.Fatal(err)
	}
	ft := &fakeT{}
	tester.CaptureSnapshot().MatchesFile(ft, path)
	if len(ft.errors) != 1 || !strings.Contains(ft.errors[0], "+") {
		t.Errorf("mismatch not reported: %v", ft.errors)
	}
}

func TestSnapshot_Diff(t *testing.T) {
	a := &Snapshot{Pass: 1, Windows: []WindowSnapshot{{Title: "w", Tree: &SnapshotNode{Kind: "text", Text: "before"}}}}
	b := &Snapshot{Pass: 1, Windows: []WindowSnapshot{{Title: "w", Tree: &SnapshotNode{Kind: "text", Text: "before"}}}}
	if diff := a.Diff(b); diff != "" {
		t.Errorf("equal snapshots differ:\n%s", diff)
	}
	b.Windows[0].Tree.Text = "after"
	diff := a.Diff(b)
	if !strings.Contains(diff, "text: after") || !strings.Contains(diff, "text: before") {
		t.Errorf("diff = %q", diff)
	}
}

func TestSnapshot_MissingFile(t *testing.T) {
	t.Setenv(UpdateSnapshotsEnv, "")
	ft := &fakeT{}
	(&Snapshot{}).MatchesFile(ft, filepath.Join(t.TempDir(), "absent.yaml"))
	if len(ft.fatals) != 1 || !strings.Contains(ft.fatals[0], "REACTOR_UPDATE_SNAPSHOTS=1") {
		t.Errorf("fatals = %v", ft.fatals)
	}
}

func TestSnapshot_UpdateEnvWritesFile(t *testing.T) {
	t.Setenv(UpdateSnapshotsEnv, "1")
	path := filepath.Join(t.TempDir(), "new.yaml")
	snap := &Snapshot{Pass: 3}
	ft := &fakeT{}
	snap.MatchesFile(ft, path)
	if len(ft.fatals)+len(ft.errors) != 0 {
		t.Fatalf("unexpected failures: %v %v", ft.fatals, ft.errors)
	}
	got, err := loadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Pass != 3 {
		t.Errorf("Pass = %d, want 3", got.Pass)
	}
}
