// Package logging provides the process-wide structured logger used across
// the auditor. There is a single package-level default, overridable via
// SetLogger, so components that do not have an explicit logger threaded
// through their constructor still log sensibly in tests and small scripts.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the default logger. Components should prefer an explicitly
// injected *zerolog.Logger where one is available; this is a fallback for
// call sites (mostly package-level helpers) that do not carry one.
var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Logger()
}

// SetLogger overrides the default logger, e.g. to switch to JSON output in
// production or to a buffered test logger in unit tests.
func SetLogger(l zerolog.Logger) {
	Logger = l
}

// New builds a logger for a named component, inheriting the default sink.
func New(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
