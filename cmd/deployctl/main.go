// deployctl drives deployments through the Pulumi Automation API: the same
// declaration the pulumi CLI runs, wrapped in up/preview/destroy/output plus
// a preflight check of the externally stored state.
package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes
const (
	ExitSuccess     = 0
	ExitConfigError = 1
	ExitRunError    = 2
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "deployctl: %v\n", err)
		var cfgErr *configError
		if errors.As(err, &cfgErr) {
			return ExitConfigError
		}
		return ExitRunError
	}
	return ExitSuccess
}
