package core

import (
	"cmp"
	stderrors "errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/errors"
	"github.com/go-drift/reactor/pkg/view"
)

// Phase is the render scheduler state.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseCollecting
	PhaseRendering
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCollecting:
		return "collecting"
	case PhaseRendering:
		return "rendering"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// ErrPassActive is returned by RunPass when another pass is running, such
// as when a Render callback tries to start one.
var ErrPassActive = stderrors.New("core: render pass already in progress")

// mount is the scheduler's record of a view reachable from a window.
type mount struct {
	id       entity.ID
	window   *Window
	parent   entity.ID
	depth    int
	tree     view.Node
	children []entity.ID
	deps     []entity.ID
	pass     uint64
}

// MountInfo describes a mounted view for diagnostics.
type MountInfo struct {
	ID     entity.ID `json:"id"`
	Parent entity.ID `json:"parent"`
	Depth  int       `json:"depth"`
	Window int       `json:"window"`
	Pass   uint64    `json:"pass"`
}

// PassReport summarizes one render pass.
type PassReport struct {
	Pass       uint64        `json:"pass"`
	Dirty      int           `json:"dirty"`
	Roots      int           `json:"roots"`
	Rendered   int           `json:"rendered"`
	Superseded int           `json:"superseded"`
	Frames     int           `json:"frames"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration"`
}

// Scheduler turns the dirty set into rendered frames. RunPass must only be
// called from the loop that owns the runtime's UI session.
type Scheduler struct {
	rt    *Runtime
	phase atomic.Int32
	pass  atomic.Uint64

	mu        sync.Mutex
	mounts    map[entity.ID]*mount
	observers map[entity.ID]map[entity.ID]struct{}
	// journal records mount state touched by the running pass so an
	// aborted pass can be rolled back. Nil outside render.
	journal map[entity.ID]mountBackup

	dmu       sync.Mutex
	destroyed []entity.ID
	unhook    func()
}

func newScheduler(rt *Runtime) *Scheduler {
	s := &Scheduler{
		rt:        rt,
		mounts:    make(map[entity.ID]*mount),
		observers: make(map[entity.ID]map[entity.ID]struct{}),
	}
	s.unhook = rt.store.OnDestroy(func(id entity.ID) {
		s.dmu.Lock()
		s.destroyed = append(s.destroyed, id)
		s.dmu.Unlock()
	})
	return s
}

// Phase returns the current phase.
func (s *Scheduler) Phase() Phase { return Phase(s.phase.Load()) }

// Pass returns the number of the last pass that rendered anything.
func (s *Scheduler) Pass() uint64 { return s.pass.Load() }

// Mounted lists mounted views ordered by depth, then id.
func (s *Scheduler) Mounted() []MountInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]MountInfo, 0, len(s.mounts))
	for _, m := range s.mounts {
		info := MountInfo{ID: m.id, Parent: m.parent, Depth: m.depth, Pass: m.pass}
		if m.window != nil {
			info.Window = m.window.id
		}
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b MountInfo) int {
		if c := cmp.Compare(a.Depth, b.Depth); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.Index(), b.ID.Index())
	})
	return infos
}

// mountBackup is a mount's state before the current pass changed it.
type mountBackup struct {
	m       *mount
	saved   mount
	present bool
}

// recordLocked saves id's mount state the first time the running pass
// touches it.
func (s *Scheduler) recordLocked(id entity.ID) {
	if s.journal == nil {
		return
	}
	if _, ok := s.journal[id]; ok {
		return
	}
	b := mountBackup{m: s.mounts[id]}
	if b.m != nil {
		b.present = true
		b.saved = *b.m
		b.saved.children = slices.Clone(b.m.children)
		b.saved.deps = slices.Clone(b.m.deps)
	}
	s.journal[id] = b
}

func (s *Scheduler) beginJournal() {
	s.mu.Lock()
	s.journal = make(map[entity.ID]mountBackup)
	s.mu.Unlock()
}

// endJournal drops the journal, restoring every touched mount first when
// rollback is set.
func (s *Scheduler) endJournal(rollback bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	journal := s.journal
	s.journal = nil
	if !rollback || len(journal) == 0 {
		return
	}
	for id, b := range journal {
		if !b.present {
			delete(s.mounts, id)
			continue
		}
		*b.m = b.saved
		s.mounts[id] = b.m
	}
	s.observers = make(map[entity.ID]map[entity.ID]struct{})
	for id, m := range s.mounts {
		for _, dep := range m.deps {
			obs := s.observers[dep]
			if obs == nil {
				obs = make(map[entity.ID]struct{})
				s.observers[dep] = obs
			}
			obs[id] = struct{}{}
		}
	}
}

type passState struct {
	pass        uint64
	rendered    map[entity.ID]bool
	stack       map[entity.ID]bool
	current     entity.ID
	currentType string
	renders     int
	superseded  int
}

// RunPass runs one render pass: it drains the dirty set, renders every
// dirty root reachable from an open window, ancestors first, and hands
// the frames to the compositor.
//
// A pass with no dirty roots does nothing. A panic inside a render aborts
// the pass: the compositor is not called and the RenderError is reported
// and returned. Notifications raised during the pass are left for the
// next one.
func (s *Scheduler) RunPass() (rep PassReport, err error) {
	if !s.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseCollecting)) {
		return rep, ErrPassActive
	}
	defer s.phase.Store(int32(PhaseIdle))

	start := time.Now()
	rep.Started = start
	s.forgetDestroyed()

	dirty := s.rt.tracker.Drain()
	rep.Dirty = len(dirty)
	roots := s.collect(dirty)
	rep.Roots = len(roots)
	if len(roots) == 0 {
		return rep, nil
	}

	s.phase.Store(int32(PhaseRendering))
	p := &passState{
		pass:     s.pass.Add(1),
		rendered: make(map[entity.ID]bool),
		stack:    make(map[entity.ID]bool),
	}
	rep.Pass = p.pass

	s.beginJournal()
	frames, err := s.render(p, roots)
	s.endJournal(err != nil)
	rep.Rendered = p.renders
	rep.Superseded = p.superseded
	rep.Duration = time.Since(start)
	if err != nil {
		return rep, err
	}
	rep.Frames = len(frames)

	if c := s.rt.Compositor(); c != nil && len(frames) > 0 {
		if err := c.Composite(frames); err != nil {
			return rep, fmt.Errorf("core: composite pass %d: %w", p.pass, err)
		}
	}
	return rep, nil
}

// collect expands dirty ids to the mounted views depending on them and
// sorts them ancestors first. Ties keep notification order.
func (s *Scheduler) collect(dirty []entity.ID) []*mount {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[entity.ID]bool, len(dirty))
	var roots []*mount
	add := func(id entity.ID) {
		if seen[id] {
			return
		}
		if m := s.mounts[id]; m != nil {
			seen[id] = true
			roots = append(roots, m)
		}
	}
	for _, id := range dirty {
		add(id)
		if obs := s.observers[id]; len(obs) > 0 {
			ids := make([]entity.ID, 0, len(obs))
			for v := range obs {
				ids = append(ids, v)
			}
			slices.SortFunc(ids, func(a, b entity.ID) int { return cmp.Compare(a.Index(), b.Index()) })
			for _, v := range ids {
				add(v)
			}
		}
	}
	slices.SortStableFunc(roots, func(a, b *mount) int {
		return cmp.Compare(a.depth, b.depth)
	})
	return roots
}

func (s *Scheduler) render(p *passState, roots []*mount) (frames []Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr := &errors.RenderError{
				View:       p.currentType,
				Entity:     p.current,
				Pass:       p.pass,
				Recovered:  r,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			}
			errors.ReportRenderError(rerr)
			frames, err = nil, rerr
		}
	}()

	for _, m := range roots {
		if p.rendered[m.id] || !s.isMounted(m) {
			// Rendered or unmounted by an ancestor earlier in this pass.
			p.superseded++
			continue
		}
		s.renderMount(p, m)
		frames = append(frames, Frame{Window: m.window, Root: m.id, Pass: p.pass})
	}

	screens := make(map[*Window]view.Node)
	for i := range frames {
		f := &frames[i]
		f.Tree = s.subtree(f.Root)
		if _, ok := screens[f.Window]; !ok && f.Window != nil {
			screens[f.Window] = s.screen(f.Window.root)
		}
		f.Screen = screens[f.Window]
	}
	return frames, nil
}

func (s *Scheduler) isMounted(m *mount) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounts[m.id] == m
}

func (s *Scheduler) renderMount(p *passState, m *mount) {
	p.rendered[m.id] = true
	p.stack[m.id] = true
	defer delete(p.stack, m.id)

	prev, prevType := p.current, p.currentType
	p.current = m.id
	p.currentType, _ = s.rt.store.TypeName(m.id)
	p.renders++

	cx := &Context{rt: s.rt, sess: s.rt.ui, entity: m.id, deps: make(map[entity.ID]struct{})}
	var node view.Node
	err := entity.ReadAny(s.rt.ui, m.id, func(v any) {
		vw, ok := v.(View)
		if !ok {
			node = view.Text(fmt.Sprintf("<%T is not a view>", v))
			return
		}
		node = vw.Render(cx)
	})
	p.current, p.currentType = prev, prevType
	if err != nil {
		s.rt.logger.Warn("view not rendered", "entity", m.id, "pass", p.pass, "error", err)
		node = view.Empty()
	}

	var embedded []entity.ID
	view.Walk(node, func(n view.Node, _ int) bool {
		if n.Kind == view.KindEmbed && !n.Entity.IsZero() && !slices.Contains(embedded, n.Entity) {
			embedded = append(embedded, n.Entity)
		}
		return true
	})

	s.mu.Lock()
	s.recordLocked(m.id)
	m.tree = node
	m.pass = p.pass
	s.setDepsLocked(m, cx.deps)
	old := m.children
	m.children = m.children[:0:0]
	var next []*mount
	for _, id := range embedded {
		if p.stack[id] {
			s.rt.logger.Warn("view embeds its own ancestor", "entity", m.id, "embedded", id)
			continue
		}
		s.recordLocked(id)
		cm := s.mounts[id]
		if cm == nil {
			cm = &mount{id: id}
			s.mounts[id] = cm
		}
		cm.parent, cm.window, cm.depth = m.id, m.window, m.depth+1
		m.children = append(m.children, id)
		next = append(next, cm)
	}
	for _, id := range old {
		if cm := s.mounts[id]; cm != nil && cm.parent == m.id && !slices.Contains(m.children, id) {
			s.unmountLocked(id)
		}
	}
	s.mu.Unlock()

	for _, cm := range next {
		if !p.rendered[cm.id] {
			s.renderMount(p, cm)
		}
	}
}

// setDepsLocked replaces the set of entities m observes.
func (s *Scheduler) setDepsLocked(m *mount, deps map[entity.ID]struct{}) {
	for _, id := range m.deps {
		if obs := s.observers[id]; obs != nil {
			delete(obs, m.id)
			if len(obs) == 0 {
				delete(s.observers, id)
			}
		}
	}
	m.deps = m.deps[:0:0]
	for id := range deps {
		m.deps = append(m.deps, id)
		obs := s.observers[id]
		if obs == nil {
			obs = make(map[entity.ID]struct{})
			s.observers[id] = obs
		}
		obs[m.id] = struct{}{}
	}
}

func (s *Scheduler) mountRoot(w *Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounts[w.root] = &mount{id: w.root, window: w}
}

func (s *Scheduler) unmount(id entity.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmountLocked(id)
}

func (s *Scheduler) unmountLocked(id entity.ID) {
	m := s.mounts[id]
	if m == nil {
		return
	}
	s.recordLocked(id)
	delete(s.mounts, id)
	s.setDepsLocked(m, nil)
	for _, c := range m.children {
		if cm := s.mounts[c]; cm != nil && cm.parent == id {
			s.unmountLocked(c)
		}
	}
}

func (s *Scheduler) forgetDestroyed() {
	s.dmu.Lock()
	ids := s.destroyed
	s.destroyed = nil
	s.dmu.Unlock()
	if len(ids) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.unmountLocked(id)
		delete(s.observers, id)
	}
}

// subtree returns id's last tree with embedded views expanded.
func (s *Scheduler) subtree(id entity.ID) view.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.mounts[id]
	if m == nil {
		return view.Empty()
	}
	return s.assembleLocked(m.tree, map[entity.ID]bool{id: true})
}

func (s *Scheduler) screen(root entity.ID) view.Node {
	return s.subtree(root)
}

func (s *Scheduler) assembleLocked(n view.Node, visiting map[entity.ID]bool) view.Node {
	if n.Kind == view.KindEmbed {
		m := s.mounts[n.Entity]
		if m == nil || visiting[n.Entity] {
			return n
		}
		visiting[n.Entity] = true
		child := s.assembleLocked(m.tree, visiting)
		delete(visiting, n.Entity)
		return n.WithChildren([]view.Node{child})
	}
	if len(n.Children) == 0 {
		return n
	}
	children := make([]view.Node, len(n.Children))
	for i, c := range n.Children {
		children[i] = s.assembleLocked(c, visiting)
	}
	return n.WithChildren(children)
}

func (s *Scheduler) close() {
	if s.unhook != nil {
		s.unhook()
	}
}
