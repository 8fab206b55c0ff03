package testing

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/view"
)

// UpdateSnapshotsEnv names the environment variable that makes MatchesFile
// rewrite golden files instead of comparing.
const UpdateSnapshotsEnv = "REACTOR_UPDATE_SNAPSHOTS"

// TestingT is the subset of *testing.T used by MatchesFile, allowing
// test doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// Snapshot captures the assembled view tree of every open window.
type Snapshot struct {
	Pass    uint64           `yaml:"pass"`
	Windows []WindowSnapshot `yaml:"windows"`
}

// WindowSnapshot is one window's tree.
type WindowSnapshot struct {
	Title string        `yaml:"title"`
	Tree  *SnapshotNode `yaml:"tree"`
}

// SnapshotNode is a serialized view node. Embedded entities are recorded
// by payload type rather than id, so snapshots stay stable across runs.
type SnapshotNode struct {
	Kind     string            `yaml:"kind"`
	Tag      string            `yaml:"tag,omitempty"`
	Key      string            `yaml:"key,omitempty"`
	Text     string            `yaml:"text,omitempty"`
	Entity   string            `yaml:"entity,omitempty"`
	Props    map[string]string `yaml:"props,omitempty"`
	Children []*SnapshotNode   `yaml:"children,omitempty"`
}

// CaptureSnapshot captures the current screens of all open windows.
func (t *Tester) CaptureSnapshot() *Snapshot {
	rt := t.Runtime()
	snap := &Snapshot{Pass: rt.Scheduler().Pass()}
	for _, w := range rt.Windows() {
		snap.Windows = append(snap.Windows, WindowSnapshot{
			Title: w.Title(),
			Tree:  CaptureNode(rt.Store(), w.Tree()),
		})
	}
	return snap
}

// CaptureNode serializes n. store resolves embed nodes to payload type
// names and may be nil.
func CaptureNode(store *entity.Store, n view.Node) *SnapshotNode {
	out := &SnapshotNode{
		Kind: n.Kind.String(),
		Tag:  n.Tag,
		Key:  n.Key,
		Text: n.Text,
	}
	if n.Kind == view.KindEmbed && store != nil {
		if name, ok := store.TypeName(n.Entity); ok {
			out.Entity = name
		}
	}
	if len(n.Props) > 0 {
		out.Props = make(map[string]string, len(n.Props))
		for _, p := range n.Props {
			out.Props[p.Name] = p.Value
		}
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, CaptureNode(store, c))
	}
	return out
}

// MatchesFile compares this snapshot against a golden file. On mismatch it
// reports a diff and instructions for updating. When
// REACTOR_UPDATE_SNAPSHOTS=1 is set, the file is silently updated instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()

	if os.Getenv(UpdateSnapshotsEnv) == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}

	expected, err := loadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("snapshot file missing: %s\n\nTo create: %s=1 go test -run %s", path, UpdateSnapshotsEnv, t.Name())
			return
		}
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}

	if diff := s.Diff(expected); diff != "" {
		t.Errorf("snapshot mismatch: %s\n%s\n\nTo update: %s=1 go test -run %s", path, diff, UpdateSnapshotsEnv, t.Name())
	}
}

// UpdateFile writes this snapshot to the given path, creating directories
// as needed.
func (s *Snapshot) UpdateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := marshalSnapshot(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Diff compares the YAML forms of other (want) and s (got) line by line
// and returns a go-cmp report, or "" when they are equal.
// A snapshot that cannot be marshalled never matches; the error is
// returned in place of the report.
func (s *Snapshot) Diff(other *Snapshot) string {
	got, err := marshalSnapshot(s)
	if err != nil {
		return fmt.Sprintf("cannot marshal actual snapshot: %v", err)
	}
	want, err := marshalSnapshot(other)
	if err != nil {
		return fmt.Sprintf("cannot marshal expected snapshot: %v", err)
	}
	if bytes.Equal(got, want) {
		return ""
	}
	return cmp.Diff(strings.Split(string(want), "\n"), strings.Split(string(got), "\n"))
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot YAML: %w", err)
	}
	return &snap, nil
}

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
