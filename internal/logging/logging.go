// ABOUTME: Structured logger construction for snapfeed
// ABOUTME: Wraps charmbracelet/log with the level and prefix the CLI uses

package logging

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w. Verbose enables debug output; otherwise
// only warnings and errors are shown so command output stays clean.
func New(w io.Writer, verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "snapfeed",
		ReportTimestamp: verbose,
		TimeFormat:      time.Kitchen,
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
