// Command sbatchman is the CLI entrypoint: configuration expansion, job
// lifecycle control, query, and bundle import/export over a local SQLite
// store (spec §1 Overview).
package main

import (
	"os"

	"github.com/3leaps/sbatchman/internal/cmd"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	os.Exit(cmd.Execute())
}
