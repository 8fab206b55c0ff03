package demo

import (
	"strconv"

	"github.com/go-drift/reactor/pkg/core"
	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/view"
)

// Counter is one labelled count.
type Counter struct {
	Label string
	Count int
}

// Render implements core.View.
func (c *Counter) Render(*core.Context) view.Node {
	return view.El("row",
		view.El("label", view.Text(c.Label)).With("bold", "true"),
		view.Text(strconv.Itoa(c.Count)),
	).WithKey(c.Label)
}

// Board lists counters, marks the selected one and shows a status line.
// It owns its counters: destroying the board releases them.
type Board struct {
	Title    string
	Counters []*entity.Ref[Counter]
	Selected int
	Status   string
}

// Render implements core.View.
func (b *Board) Render(cx *core.Context) view.Node {
	rows := make([]view.Node, 0, len(b.Counters))
	for i, c := range b.Counters {
		marker := " "
		if i == b.Selected {
			marker = ">"
		}
		rows = append(rows, view.El("row", view.Text(marker), view.Embed(c)))
	}
	status := view.Empty()
	if b.Status != "" {
		status = view.El("status", view.Text(b.Status)).With("muted", "true")
	}
	return view.El("board",
		view.El("title", view.Text(b.Title)).With("bold", "true").With("color", "#A78BFA"),
		view.El("counters", rows...),
		status,
	).With("border", "rounded").With("padding", "1")
}

// Dispose releases the board's counters.
func (b *Board) Dispose() {
	for _, c := range b.Counters {
		c.Release()
	}
	b.Counters = nil
}

// selected returns the selected counter, or nil when b is empty.
func (b *Board) selected() *entity.Ref[Counter] {
	if len(b.Counters) == 0 {
		return nil
	}
	return b.Counters[b.Selected]
}
