package types

import (
	"log"
	"os"
)

// Logger is the minimal logging surface the engine depends on. Any logger
// exposing Printf (including the stdlib *log.Logger) satisfies it.
type Logger interface {
	Printf(format string, v ...interface{})
}

// compile-time guard that `log.Logger` adheres to our `Logger` interface.
// see https://golang.org/doc/faq#guarantee_satisfies_interface
var _ Logger = &log.Logger{}

// DefaultLogger returns the stdlib logger used when none is configured.
func DefaultLogger() *log.Logger {
	return log.New(os.Stdout, "", log.LstdFlags)
}

// NewLogger returns custom if non-nil, otherwise the default logger.
func NewLogger(custom Logger) Logger {
	if custom != nil {
		return custom
	}
	return DefaultLogger()
}
