// Package main is the entry point for the plexapm binary.
package main

import (
	"errors"
	"os"
	"os/exec"

	"github.com/plexsphere/plexapm/cmd/plexapm/cmd"
)

// Build-time variables set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	if err := cmd.Execute(); err != nil {
		// A measured command keeps its own exit status.
		var ee *exec.ExitError
		if errors.As(err, &ee) && ee.ExitCode() > 0 {
			os.Exit(ee.ExitCode())
		}
		os.Exit(1)
	}
}
