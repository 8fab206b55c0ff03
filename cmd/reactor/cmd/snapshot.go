package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-drift/reactor/pkg/compositor"
	"github.com/go-drift/reactor/pkg/core"
)

func newSnapshotCmd(o *rootOptions) *cobra.Command {
	var (
		out    string
		format string
		script []string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the board and write it out",
		Long: `Render the counter board, replay --script in a single tick and
write the result. Format png writes window-<id>.png into --out and
prints its path; format text prints every frame's tree outline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				comp core.Compositor
				png  *compositor.PNG
			)
			switch format {
			case "png":
				if err := os.MkdirAll(out, 0o755); err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				png = &compositor.PNG{Dir: out}
				comp = png
			case "text":
				comp = compositor.NewText(cmd.OutOrStdout())
			default:
				return fmt.Errorf("unknown format %q (want png or text)", format)
			}

			app, store, err := o.newApp(comp, false)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
			defer app.Close(context.Background())

			for _, action := range script {
				if err := app.Apply(action); err != nil {
					return err
				}
			}
			if _, err := app.Engine().Tick(); err != nil {
				return err
			}

			if png != nil {
				seen := make(map[string]bool)
				for _, path := range png.Written() {
					if !seen[path] {
						seen[path] = true
						fmt.Fprintln(cmd.OutOrStdout(), path)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", ".", "output directory for png files")
	cmd.Flags().StringVarP(&format, "format", "f", "png", "output format: png or text")
	cmd.Flags().StringSliceVar(&script, "script", nil, "comma-separated actions applied before rendering")
	return cmd
}
