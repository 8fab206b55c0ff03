// Package compositor provides reference compositors for rendered frames:
// an outline dump, a styled terminal screen and a PNG rasterizer.
package compositor

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-drift/reactor/pkg/core"
)

// Text writes every frame's tree as an indented outline preceded by a
// header line.
type Text struct {
	mu sync.Mutex
	w  io.Writer
}

// NewText returns a Text compositor writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

// Composite implements core.Compositor.
func (t *Text) Composite(frames []core.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range frames {
		window := 0
		if f.Window != nil {
			window = f.Window.ID()
		}
		if _, err := fmt.Fprintf(t.w, "-- pass %d window %d root %s\n%s", f.Pass, window, f.Root, f.Tree); err != nil {
			return fmt.Errorf("compositor: write frame: %w", err)
		}
	}
	return nil
}

// Multi fans frames out to several compositors. The first error stops
// the fan-out.
type Multi []core.Compositor

// Composite implements core.Compositor.
func (m Multi) Composite(frames []core.Frame) error {
	for _, c := range m {
		if c == nil {
			continue
		}
		if err := c.Composite(frames); err != nil {
			return err
		}
	}
	return nil
}
