// Command reactor runs the reactor counter board demo and its tooling.
package main

import (
	"os"

	"github.com/go-drift/reactor/cmd/reactor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
