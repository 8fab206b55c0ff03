// Package view defines the view tree produced by render functions.
//
// A [Node] is an immutable value: constructors copy their inputs and
// methods that "modify" a node return a new one. Render functions build a
// fresh tree every pass and the compositor discards it afterwards, so
// nodes carry no identity beyond their position and optional Key.
//
//	view.El("row",
//	    view.Text(fmt.Sprintf("Count: %d", c.Count)),
//	    view.Embed(c.Child),
//	).With("align", "center")
package view

import (
	"sort"
	"strings"

	"github.com/go-drift/reactor/pkg/entity"
)

// Kind distinguishes the node variants.
type Kind uint8

const (
	// KindEmpty is the zero node. It renders nothing.
	KindEmpty Kind = iota
	// KindElement is a tagged container with properties and children.
	KindElement
	// KindText is a leaf holding text.
	KindText
	// KindEmbed stands for the view tree of another entity. The render
	// scheduler replaces it with that entity's rendered tree.
	KindEmbed
)

func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindEmbed:
		return "embed"
	default:
		return "empty"
	}
}

// Prop is a single node property.
type Prop struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Node is one node of a view tree.
type Node struct {
	Kind     Kind      `yaml:"kind"`
	Tag      string    `yaml:"tag,omitempty"`
	Key      string    `yaml:"key,omitempty"`
	Text     string    `yaml:"text,omitempty"`
	Props    []Prop    `yaml:"props,omitempty"`
	Children []Node    `yaml:"children,omitempty"`
	Entity   entity.ID `yaml:"-"`
}

// Empty returns the empty node.
func Empty() Node { return Node{} }

// Text returns a text leaf.
func Text(s string) Node {
	return Node{Kind: KindText, Text: s}
}

// El returns an element with the given tag and children. Empty children
// are dropped.
func El(tag string, children ...Node) Node {
	n := Node{Kind: KindElement, Tag: tag}
	for _, c := range children {
		if c.Kind == KindEmpty {
			continue
		}
		n.Children = append(n.Children, c)
	}
	return n
}

// Embed returns a placeholder for the view tree of e.
func Embed(e entity.Entity) Node {
	return Node{Kind: KindEmbed, Entity: e.ID()}
}

// With returns a copy of n with property name set to value. Properties are
// kept sorted by name.
func (n Node) With(name, value string) Node {
	props := make([]Prop, 0, len(n.Props)+1)
	replaced := false
	for _, p := range n.Props {
		if p.Name == name {
			p.Value = value
			replaced = true
		}
		props = append(props, p)
	}
	if !replaced {
		props = append(props, Prop{Name: name, Value: value})
		sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
	}
	n.Props = props
	return n
}

// WithKey returns a copy of n carrying key.
func (n Node) WithKey(key string) Node {
	n.Key = key
	return n
}

// Prop returns the value of property name.
func (n Node) Prop(name string) (string, bool) {
	for _, p := range n.Props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// WithChildren returns a copy of n with its children replaced.
func (n Node) WithChildren(children []Node) Node {
	n.Children = append([]Node(nil), children...)
	return n
}

// Walk calls fn for n and every descendant in depth-first pre-order.
// Returning false from fn skips the node's children.
func Walk(n Node, fn func(n Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}

// Count returns the number of nodes in the tree rooted at n.
func Count(n Node) int {
	total := 0
	Walk(n, func(Node, int) bool {
		total++
		return true
	})
	return total
}

// String renders the tree as an indented outline, one node per line.
func (n Node) String() string {
	var sb strings.Builder
	Walk(n, func(node Node, depth int) bool {
		sb.WriteString(strings.Repeat("  ", depth))
		switch node.Kind {
		case KindText:
			sb.WriteString("\"" + node.Text + "\"")
		case KindEmbed:
			sb.WriteString("<embed " + node.Entity.String() + ">")
		case KindElement:
			sb.WriteString("<" + node.Tag)
			if node.Key != "" {
				sb.WriteString(" key=" + node.Key)
			}
			for _, p := range node.Props {
				sb.WriteString(" " + p.Name + "=" + p.Value)
			}
			sb.WriteString(">")
		default:
			sb.WriteString("<empty>")
		}
		sb.WriteString("\n")
		return true
	})
	return sb.String()
}
