// Package buildlog configures the structured logger shared by the core and
// the CLI front end.
package buildlog

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// EnvLogLevel is the environment variable used to override the default level.
const EnvLogLevel = "FORGE_LOG_LEVEL"

// New returns a leveled logger writing to out (os.Stderr when nil), honoring
// EnvLogLevel and falling back to Info.
func New(out io.Writer) hclog.Logger {
	if out == nil {
		out = os.Stderr
	}
	level := hclog.Info
	if raw := os.Getenv(EnvLogLevel); raw != "" {
		level = hclog.LevelFromString(raw)
		if level == hclog.NoLevel {
			level = hclog.Info
		}
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:            "forge",
		Level:           level,
		Output:          out,
		Color:           hclog.AutoColor,
		IncludeLocation: false,
	})
}
