package main

import (
	"os"

	"github.com/park285/csa-client/cmd/csa-client/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Execute(); err != nil {
		commands.PrintError(err)
		os.Exit(1)
	}
}
