// Command kpiweights normalizes and validates KPI weight sets offline using
// the same pipeline as the server.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
