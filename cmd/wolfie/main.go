package main

import (
	"os"
	_ "time/tzdata"

	"wolfie/cmd/wolfie/commands"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := commands.NewRoot(commands.Build{Version: version, Commit: commit})
	// The printer has already reported the error.
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
