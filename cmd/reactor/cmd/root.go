// Package cmd implements the reactor CLI commands.
//
// The root command resolves reactor.yaml, REACTOR_* environment variables
// and flags once, then dispatches to demo, snapshot, serve or version.
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-drift/reactor/cmd/reactor/internal/config"
	"github.com/go-drift/reactor/cmd/reactor/internal/demo"
	"github.com/go-drift/reactor/pkg/core"
	"github.com/go-drift/reactor/pkg/engine"
	"github.com/go-drift/reactor/pkg/errors"
	"github.com/go-drift/reactor/pkg/logging"
	"github.com/go-drift/reactor/pkg/persist"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

type rootOptions struct {
	v        *viper.Viper
	cfgFile  string
	resolved *config.Resolved
	level    slog.LevelVar
	logger   *slog.Logger
}

// NewRootCmd builds the command tree with fresh flag and config state.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "reactor",
		Short: "Reactive entity runtime demo and tooling",
		Long: `reactor drives a small counter board built on an entity store,
a dirty-tracking render scheduler and cooperative tasks.

Settings come from reactor.yaml, REACTOR_* environment variables and
flags, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.cfgFile, "config", "c", "", "config file (default is reactor.yaml in the project root)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")
	pf.StringSlice("counters", nil, "counter labels")
	pf.String("store", "", "bbolt file persisting counts")
	pf.Int("max-passes", 0, "render passes per tick before deferring")
	_ = o.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = o.v.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = o.v.BindPFlag("app.counters", pf.Lookup("counters"))
	_ = o.v.BindPFlag("store.path", pf.Lookup("store"))
	_ = o.v.BindPFlag("engine.max_passes_per_tick", pf.Lookup("max-passes"))

	root.AddCommand(
		newDemoCmd(o),
		newSnapshotCmd(o),
		newServeCmd(o),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		return err
	}
	return nil
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	dir, err := config.FindProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}
	path := o.cfgFile
	if path == "" {
		path = filepath.Join(dir, config.FileName)
	}
	r, err := config.ResolveFile(dir, path, o.v)
	if err != nil {
		return err
	}
	o.resolved = r
	o.level.Set(logging.ParseLevel(r.Log.Level))
	o.logger = logging.NewLeveled(cmd.ErrOrStderr(), &o.level, r.Log.Format)
	errors.SetHandler(&errors.LogHandler{Logger: o.logger})
	o.logger.Debug("configuration resolved", "file", r.File, "app", r.AppName)
	return nil
}

func (o *rootOptions) engineConfig(c core.Compositor) engine.Config {
	ec := o.resolved.Engine
	return engine.Config{
		MaxPassesPerTick:      ec.MaxPassesPerTick,
		Logger:                o.logger,
		Compositor:            c,
		Workers:               ec.Workers,
		SlowPassThreshold:     ec.SlowPass(),
		RuntimeSampleInterval: ec.RuntimeSampleInterval(),
	}
}

// newApp builds the demo board. The returned store is nil when
// persistence is off; the caller closes it after the app.
func (o *rootOptions) newApp(c core.Compositor, autosave bool) (*demo.App, *persist.Store, error) {
	var store *persist.Store
	if path := o.resolved.Store.Path; path != "" {
		s, err := persist.Open(path)
		if err != nil {
			return nil, nil, err
		}
		store = s
	}
	opts := demo.Options{
		Title:  o.resolved.AppName,
		Labels: o.resolved.App.Counters,
		Engine: o.engineConfig(c),
		Store:  store,
	}
	if autosave {
		opts.AutosaveInterval = o.resolved.Store.AutosaveInterval()
	}
	app, err := demo.New(opts)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}
	return app, store, nil
}
