package view

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/go-drift/reactor/pkg/entity"
)

func TestWithKeepsOriginal(t *testing.T) {
	base := El("row").With("gap", "1")
	next := base.With("align", "center").With("gap", "2")

	if v, _ := base.Prop("gap"); v != "1" {
		t.Errorf("original gap = %q, want 1", v)
	}
	want := []Prop{{Name: "align", Value: "center"}, {Name: "gap", Value: "2"}}
	if diff := cmp.Diff(want, next.Props); diff != "" {
		t.Errorf("props mismatch (-want +got):\n%s", diff)
	}
}

func TestElDropsEmpty(t *testing.T) {
	n := El("col", Text("a"), Empty(), Text("b"))
	if len(n.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(n.Children))
	}
}

func TestWalkAndCount(t *testing.T) {
	tree := El("root",
		El("row", Text("a"), Text("b")),
		Text("c"),
	)
	var tags []string
	Walk(tree, func(n Node, depth int) bool {
		if n.Kind == KindElement {
			tags = append(tags, n.Tag)
		}
		return n.Tag != "row"
	})
	if diff := cmp.Diff([]string{"root", "row"}, tags); diff != "" {
		t.Errorf("walk order mismatch (-want +got):\n%s", diff)
	}
	if got := Count(tree); got != 5 {
		t.Errorf("Count = %d, want 5", got)
	}
}

func TestEmbedAndString(t *testing.T) {
	store := entity.NewStore()
	child := entity.New(store, 0)
	defer child.Release()

	tree := El("panel", Embed(child)).WithKey("p1").With("title", "x")
	want := "<panel key=p1 title=x>\n  <embed " + child.ID().String() + ">\n"
	if got := tree.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
	if tree.Children[0].Entity != child.ID() {
		t.Error("embed node should carry the child ID")
	}
}

func TestWithChildrenCopies(t *testing.T) {
	kids := []Node{Text("a")}
	n := El("x").WithChildren(kids)
	kids[0] = Text("mutated")
	if diff := cmp.Diff(Text("a"), n.Children[0], cmpopts.IgnoreUnexported(entity.ID{})); diff != "" {
		t.Errorf("WithChildren must copy (-want +got):\n%s", diff)
	}
}
