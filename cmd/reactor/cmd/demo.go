package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/go-drift/reactor/cmd/reactor/internal/demo"
	"github.com/go-drift/reactor/pkg/compositor"
)

// defaultScript is replayed when the demo cannot run interactively.
var defaultScript = []string{"inc", "next", "inc", "inc", "prev"}

func newDemoCmd(o *rootOptions) *cobra.Command {
	var script []string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the counter board",
		Long: `Run the counter board in the terminal.

On a terminal the board is interactive: arrows or j/k select a counter,
+ and - change it, s saves and q quits. Otherwise, or when --script is
given, the actions are replayed one tick at a time and every screen is
printed.

Script actions: inc, dec, next, prev, add:<label>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			term := compositor.NewTerminal(nil)
			interactive := len(script) == 0 && isTerminal(cmd)

			app, store, err := o.newApp(term, interactive)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
			defer app.Close(context.Background())

			if !interactive {
				if len(script) == 0 {
					script = defaultScript
				}
				return demo.RunScript(app, term, cmd.OutOrStdout(), script)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return demo.RunTUI(ctx, app, term)
		},
	}
	cmd.Flags().StringSliceVar(&script, "script", nil, "comma-separated actions to replay instead of running interactively")
	return cmd
}

func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
