// Package demo is a counter board built on the reactor runtime. It backs
// the reactor CLI's demo, snapshot and serve commands.
package demo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-drift/reactor/pkg/core"
	"github.com/go-drift/reactor/pkg/engine"
	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/errors"
	"github.com/go-drift/reactor/pkg/logging"
	"github.com/go-drift/reactor/pkg/persist"
	"github.com/go-drift/reactor/pkg/task"
)

// Options configures an App.
type Options struct {
	Title  string
	Labels []string
	Engine engine.Config
	// Store persists counts across runs. May be nil.
	Store *persist.Store
	// AutosaveInterval is the autosave period. Zero disables autosave.
	AutosaveInterval time.Duration
}

// App owns an engine, a board entity and the window showing it.
type App struct {
	engine   *engine.Engine
	board    *entity.Ref[Board]
	window   *core.Window
	store    *persist.Store
	logger   *slog.Logger
	autosave *task.Handle[int]
}

// New builds the board, restores saved counts and opens its window. The
// first frame is rendered by the next engine tick.
func New(opts Options) (*App, error) {
	eng := engine.New(opts.Engine)
	rt := eng.Runtime()
	logger := logging.OrDefault(opts.Engine.Logger)

	counters := make([]*entity.Ref[Counter], 0, len(opts.Labels))
	for _, label := range opts.Labels {
		counters = append(counters, entity.New(rt.Store(), restore(opts.Store, logger, label)))
	}
	board := entity.New(rt.Store(), Board{Title: opts.Title, Counters: counters})

	w, err := core.OpenWindow(rt, opts.Title, board)
	if err != nil {
		board.Release()
		_ = eng.Shutdown(context.Background())
		return nil, fmt.Errorf("demo: open window: %w", err)
	}

	app := &App{
		engine: eng,
		board:  board,
		window: w,
		store:  opts.Store,
		logger: logger,
	}
	if opts.Store != nil && opts.AutosaveInterval > 0 {
		eng.Update(func(cx *core.Context) {
			app.autosave = spawnAutosave(cx, board, opts.Store, opts.AutosaveInterval)
		})
	}
	return app, nil
}

func restore(store *persist.Store, logger *slog.Logger, label string) Counter {
	c := Counter{Label: label}
	if store == nil {
		return c
	}
	if err := store.Load(Bucket, label, &c.Count); err != nil && !errors.Is(err, errors.ErrNotFound) {
		logger.Warn("could not restore counter", "label", label, "error", err)
	}
	return c
}

// Engine returns the engine driving the app.
func (a *App) Engine() *engine.Engine { return a.engine }

// Window returns the board's window.
func (a *App) Window() *core.Window { return a.window }

// Board returns the board entity.
func (a *App) Board() *entity.Ref[Board] { return a.board }

// Autosave returns the autosave task, or nil when autosave is off.
func (a *App) Autosave() *task.Handle[int] { return a.autosave }

// Increment adds delta to the selected counter on the next tick.
func (a *App) Increment(delta int) {
	a.engine.Dispatch(func(cx *core.Context) {
		err := core.Update(cx, a.board, func(b *Board, cx *core.Context) error {
			c := b.selected()
			if c == nil {
				return nil
			}
			return core.Update(cx, c, func(c *Counter, cx *core.Context) error {
				c.Count += delta
				cx.NotifySelf()
				return nil
			})
		})
		a.logIfFailed("increment", err)
	})
}

// Select moves the selection by delta, wrapping around.
func (a *App) Select(delta int) {
	a.engine.Dispatch(func(cx *core.Context) {
		err := core.Update(cx, a.board, func(b *Board, cx *core.Context) error {
			n := len(b.Counters)
			if n == 0 {
				return nil
			}
			b.Selected = ((b.Selected+delta)%n + n) % n
			cx.NotifySelf()
			return nil
		})
		a.logIfFailed("select", err)
	})
}

// Add appends a new counter and selects it.
func (a *App) Add(label string) {
	a.engine.Dispatch(func(cx *core.Context) {
		err := core.Update(cx, a.board, func(b *Board, cx *core.Context) error {
			b.Counters = append(b.Counters, core.New(cx, restore(a.store, a.logger, label)))
			b.Selected = len(b.Counters) - 1
			cx.NotifySelf()
			return nil
		})
		a.logIfFailed("add", err)
	})
}

// Apply performs one named action: "inc", "dec", "next", "prev" or
// "add:<label>".
func (a *App) Apply(action string) error {
	name, arg, _ := strings.Cut(strings.TrimSpace(action), ":")
	switch name {
	case "inc", "+":
		a.Increment(1)
	case "dec", "-":
		a.Increment(-1)
	case "next", "j":
		a.Select(1)
	case "prev", "k":
		a.Select(-1)
	case "add":
		if strings.TrimSpace(arg) == "" {
			return fmt.Errorf("demo: add needs a label, e.g. add:figs")
		}
		a.Add(strings.TrimSpace(arg))
	default:
		return fmt.Errorf("demo: unknown action %q", action)
	}
	return nil
}

// Counts returns the current count per label in board order. It must not
// be called during a tick.
func (a *App) Counts() []SavedCount {
	var counts []SavedCount
	a.engine.Update(func(cx *core.Context) {
		var err error
		counts, err = readCounts(cx, a.board)
		a.logIfFailed("counts", err)
	})
	return counts
}

// Save writes the current counts to the store immediately.
func (a *App) Save() error {
	if a.store == nil {
		return nil
	}
	return saveCounts(a.store, a.Counts())
}

// Close saves, stops autosave and shuts the engine down.
func (a *App) Close(ctx context.Context) error {
	saveErr := a.Save()
	if a.autosave != nil {
		a.autosave.Cancel()
	}
	a.window.Close()
	a.board.Release()
	return errors.Join(saveErr, a.engine.Shutdown(ctx))
}

func (a *App) logIfFailed(op string, err error) {
	if err != nil {
		a.logger.Warn("demo action failed", "op", op, "error", err)
	}
}
