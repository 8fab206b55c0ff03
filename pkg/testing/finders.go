package testing

import (
	"fmt"
	"strings"

	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/view"
)

// Finder locates nodes in an assembled view tree.
type Finder interface {
	// Evaluate returns all matching nodes under root (depth-first pre-order).
	Evaluate(root view.Node) []view.Node
	// Description returns a human-readable description for error messages.
	Description() string
}

// FinderResult wraps finder results with convenient accessors.
type FinderResult struct {
	nodes  []view.Node
	finder Finder
}

// First returns the first match. Panics if no matches.
func (r FinderResult) First() view.Node {
	if len(r.nodes) == 0 {
		panic(fmt.Sprintf("Finder found no nodes: %s", r.describe()))
	}
	return r.nodes[0]
}

// At returns the match at index. Panics if out of range.
func (r FinderResult) At(index int) view.Node {
	if index < 0 || index >= len(r.nodes) {
		panic(fmt.Sprintf("Finder index %d out of range (found %d): %s", index, len(r.nodes), r.describe()))
	}
	return r.nodes[index]
}

// All returns all matches in traversal order.
func (r FinderResult) All() []view.Node {
	return r.nodes
}

// Count returns the number of matches.
func (r FinderResult) Count() int {
	return len(r.nodes)
}

// Exists returns true if at least one match was found.
func (r FinderResult) Exists() bool {
	return len(r.nodes) > 0
}

// Text returns the concatenated text leaves under the first match.
func (r FinderResult) Text() string {
	return TextOf(r.First())
}

func (r FinderResult) describe() string {
	if r.finder == nil {
		return "unknown"
	}
	return r.finder.Description()
}

// TextOf concatenates the text leaves of n in traversal order.
func TextOf(n view.Node) string {
	var b strings.Builder
	view.Walk(n, func(c view.Node, _ int) bool {
		if c.Kind == view.KindText {
			b.WriteString(c.Text)
		}
		return true
	})
	return b.String()
}

// --- Concrete finders ---

type predicateFinder struct {
	fn   func(view.Node) bool
	desc string
}

func (f *predicateFinder) Evaluate(root view.Node) []view.Node {
	return collectMatches(root, f.fn)
}

func (f *predicateFinder) Description() string {
	return f.desc
}

// ByTag returns a finder that matches elements with the given tag.
func ByTag(tag string) Finder {
	return &predicateFinder{
		fn:   func(n view.Node) bool { return n.Kind == view.KindElement && n.Tag == tag },
		desc: fmt.Sprintf("ByTag(%q)", tag),
	}
}

// ByKey returns a finder that matches nodes whose key equals key.
func ByKey(key string) Finder {
	return &predicateFinder{
		fn:   func(n view.Node) bool { return n.Key == key },
		desc: fmt.Sprintf("ByKey(%q)", key),
	}
}

// ByText returns a finder that matches text leaves with exact content.
func ByText(text string) Finder {
	return &predicateFinder{
		fn:   func(n view.Node) bool { return n.Kind == view.KindText && n.Text == text },
		desc: fmt.Sprintf("ByText(%q)", text),
	}
}

// ByTextContaining returns a finder that matches text leaves containing
// substring.
func ByTextContaining(substring string) Finder {
	return &predicateFinder{
		fn:   func(n view.Node) bool { return n.Kind == view.KindText && strings.Contains(n.Text, substring) },
		desc: fmt.Sprintf("ByTextContaining(%q)", substring),
	}
}

// ByProp returns a finder that matches elements whose property name has
// the given value.
func ByProp(name, value string) Finder {
	return &predicateFinder{
		fn: func(n view.Node) bool {
			v, ok := n.Prop(name)
			return ok && v == value
		},
		desc: fmt.Sprintf("ByProp(%s=%q)", name, value),
	}
}

// ByEntity returns a finder that matches the embed node standing for e.
// The match's children hold e's rendered tree.
func ByEntity(e entity.Entity) Finder {
	id := e.ID()
	return &predicateFinder{
		fn:   func(n view.Node) bool { return n.Kind == view.KindEmbed && n.Entity == id },
		desc: fmt.Sprintf("ByEntity(%s)", id),
	}
}

// ByPredicate returns a finder that matches nodes satisfying fn.
func ByPredicate(fn func(view.Node) bool) Finder {
	return &predicateFinder{fn: fn, desc: "ByPredicate(...)"}
}

// descendantFinder finds nodes matching 'matching' that are descendants
// of nodes matching 'of'.
type descendantFinder struct {
	of       Finder
	matching Finder
}

func (f *descendantFinder) Evaluate(root view.Node) []view.Node {
	var results []view.Node
	for _, ancestor := range f.of.Evaluate(root) {
		// Skip the ancestor itself.
		for _, child := range ancestor.Children {
			results = append(results, f.matching.Evaluate(child)...)
		}
	}
	return results
}

func (f *descendantFinder) Description() string {
	return fmt.Sprintf("Descendant(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Descendant returns a finder that matches nodes satisfying 'matching'
// that are descendants of nodes matching 'of'. Nested 'of' matches may
// report the same descendant more than once.
func Descendant(of, matching Finder) Finder {
	return &descendantFinder{of: of, matching: matching}
}

// collectMatches performs depth-first pre-order traversal, collecting
// nodes that satisfy the predicate.
func collectMatches(root view.Node, predicate func(view.Node) bool) []view.Node {
	var results []view.Node
	view.Walk(root, func(n view.Node, _ int) bool {
		if predicate(n) {
			results = append(results, n)
		}
		return true
	})
	return results
}
