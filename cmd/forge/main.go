// Command forge is the CLI front end over the core build engine: it parses
// arguments, builds a request, and hands off to internal/cli for the actual
// resolve/scan/build/execute pipeline.
package main

import (
	"os"

	"github.com/forgebuild/forge/internal/cli"
)

// version is overridden at release-build time via -ldflags, matching the
// teacher's version-stamping convention for its own cmd/turbo binary.
var version = "dev"

func main() {
	os.Exit(cli.Run(os.Args[1:], version))
}
