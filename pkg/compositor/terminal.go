package compositor

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-drift/reactor/pkg/core"
	"github.com/go-drift/reactor/pkg/view"
)

var (
	BorderColor = lipgloss.Color("#6B7280")
	AccentColor = lipgloss.Color("#A78BFA")
	MutedColor  = lipgloss.Color("#9CA3AF")
)

// Terminal renders each window's screen as styled terminal text. The
// latest screen per window is kept for pull-based consumers such as a
// bubbletea model; Out, when set, receives every new screen.
//
// Recognized element props:
//
//	bold=true        bold text
//	color=<color>    foreground color (ANSI number or #RRGGBB)
//	border=rounded   rounded border (also "normal", "thick")
//	padding=<n>      horizontal padding
//	muted=true       muted foreground
//
// Elements tagged "row" lay children out horizontally; all others stack
// them vertically.
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	screens map[int]string
	order   []int
}

// NewTerminal returns a terminal compositor. out may be nil.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out, screens: make(map[int]string)}
}

// Composite implements core.Compositor.
func (t *Terminal) Composite(frames []core.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	done := make(map[int]bool)
	for _, f := range frames {
		if f.Window == nil || done[f.Window.ID()] {
			continue
		}
		id := f.Window.ID()
		done[id] = true
		screen := RenderNode(f.Screen)
		if _, ok := t.screens[id]; !ok {
			t.order = append(t.order, id)
		}
		t.screens[id] = screen
		if t.out != nil {
			if _, err := fmt.Fprintln(t.out, screen); err != nil {
				return fmt.Errorf("compositor: write screen: %w", err)
			}
		}
	}
	return nil
}

// Screen returns the latest screen of a window.
func (t *Terminal) Screen(window int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.screens[window]
}

// View returns the latest screens of all windows stacked in opening order.
func (t *Terminal) View() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	parts := make([]string, 0, len(t.order))
	for _, id := range t.order {
		parts = append(parts, t.screens[id])
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Forget drops a closed window's screen.
func (t *Terminal) Forget(window int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.screens, window)
	t.order = slices.DeleteFunc(t.order, func(id int) bool { return id == window })
}

// RenderNode renders a tree to styled terminal text.
func RenderNode(n view.Node) string {
	switch n.Kind {
	case view.KindText:
		return n.Text
	case view.KindEmbed:
		if len(n.Children) == 0 {
			return ""
		}
		return RenderNode(n.Children[0])
	case view.KindElement:
		parts := make([]string, 0, len(n.Children))
		for _, c := range n.Children {
			if s := RenderNode(c); s != "" {
				parts = append(parts, s)
			}
		}
		var body string
		if n.Tag == "row" {
			body = lipgloss.JoinHorizontal(lipgloss.Top, spaced(parts)...)
		} else {
			body = lipgloss.JoinVertical(lipgloss.Left, parts...)
		}
		return styleFor(n).Render(body)
	default:
		return ""
	}
}

func spaced(parts []string) []string {
	if len(parts) < 2 {
		return parts
	}
	out := make([]string, 0, 2*len(parts)-1)
	for i, p := range parts {
		if i > 0 {
			out = append(out, " ")
		}
		out = append(out, p)
	}
	return out
}

func styleFor(n view.Node) lipgloss.Style {
	style := lipgloss.NewStyle()
	if v, ok := n.Prop("bold"); ok && v == "true" {
		style = style.Bold(true)
	}
	if v, ok := n.Prop("muted"); ok && v == "true" {
		style = style.Foreground(MutedColor)
	}
	if v, ok := n.Prop("color"); ok && v != "" {
		style = style.Foreground(lipgloss.Color(v))
	}
	if v, ok := n.Prop("border"); ok {
		switch strings.ToLower(v) {
		case "rounded":
			style = style.Border(lipgloss.RoundedBorder()).BorderForeground(BorderColor)
		case "thick":
			style = style.Border(lipgloss.ThickBorder()).BorderForeground(AccentColor)
		case "normal":
			style = style.Border(lipgloss.NormalBorder()).BorderForeground(BorderColor)
		}
	}
	if v, ok := n.Prop("padding"); ok {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			style = style.Padding(0, p)
		}
	}
	return style
}
