package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "reactor %s (built %s, %s %s/%s)\n", Version, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
