package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-drift/reactor/cmd/reactor/internal/config"
	"github.com/go-drift/reactor/pkg/logging"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the board headless with the debug server",
		Long: `Run the counter board without a terminal UI. The engine ticks on
demand, autosave persists counts to the configured store and, when
debug.port is set, the debug HTTP server exposes /stats, /entities,
/mounts, /passes, /runtime and /tree.

Edits to the config file's log level apply without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			app, store, err := o.newApp(nil, true)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := app.Close(shutdownCtx); err != nil {
					o.logger.Warn("shutdown failed", "error", err)
				}
			}()

			if port := o.resolved.Debug.Port; port > 0 {
				actual, err := app.Engine().StartDebugServer(port)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "debug server on http://localhost:%d\n", actual)
			}

			err = config.Watch(ctx, o.resolved.File, func(c *config.Config, err error) {
				if err != nil {
					o.logger.Warn("config reload failed", "error", err)
					return
				}
				if c.Log.Level != "" {
					o.level.Set(logging.ParseLevel(c.Log.Level))
				}
				o.logger.Info("config reloaded", "file", o.resolved.File, "level", o.level.Level())
			})
			if err != nil {
				o.logger.Warn("config watch unavailable", "error", err)
			}

			o.logger.Info("serving", "app", o.resolved.AppName, "counters", len(o.resolved.App.Counters))
			if err := app.Engine().Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().Int("port", 0, "debug server port (0 disables it)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	_ = o.v.BindPFlag("debug.port", cmd.Flags().Lookup("port"))
	return cmd
}
