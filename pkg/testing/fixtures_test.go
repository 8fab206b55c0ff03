package testing

import (
	"strconv"

	"github.com/go-drift/reactor/pkg/core"
	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/view"
)

type Counter struct {
	Label string
	Count int
}

func (c *Counter) Render(*core.Context) view.Node {
	return view.El("counter",
		view.Text(c.Label),
		view.Text(strconv.Itoa(c.Count)),
	).WithKey(c.Label)
}

type List struct {
	Items []*entity.Ref[Counter]
}

func (l *List) Render(*core.Context) view.Node {
	children := make([]view.Node, 0, len(l.Items))
	for _, it := range l.Items {
		children = append(children, view.Embed(it))
	}
	return view.El("list", children...).With("border", "rounded")
}

func increment(ref *entity.Ref[Counter]) func(*core.Context) {
	return func(cx *core.Context) {
		_ = core.Update(cx, ref, func(c *Counter, cx *core.Context) error {
			c.Count++
			cx.NotifySelf()
			return nil
		})
	}
}

func mountList(t interface {
	Fatal(args ...any)
	Cleanup(func())
}, tester *Tester, labels ...string) (*entity.Ref[List], []*entity.Ref[Counter]) {
	var items []*entity.Ref[Counter]
	for _, l := range labels {
		ref := entity.New(tester.Runtime().Store(), Counter{Label: l})
		t.Cleanup(ref.Release)
		items = append(items, ref)
	}
	list, _, err := Mount(tester, List{Items: items})
	if err != nil {
		t.Fatal(err)
	}
	return list, items
}
