// Package debug provides conditional debug logging for datefacet.
//
// Set DATEFACET_DEBUG to any non-empty value to enable it:
//
//	DATEFACET_DEBUG=1 datefacet -data facets.json
//
// Messages go to stderr with timestamps. When disabled every function
// returns immediately.
package debug

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"
)

// EnvVar switches debug logging on.
const EnvVar = "DATEFACET_DEBUG"

var (
	enabled atomic.Bool
	logger  = log.New(os.Stderr, "[DATEFACET_DEBUG] ", log.Ltime|log.Lmicroseconds)
)

func init() {
	enabled.Store(os.Getenv(EnvVar) != "")
}

// Enabled reports whether debug logging is on.
func Enabled() bool { return enabled.Load() }

// SetEnabled toggles debug logging at runtime.
func SetEnabled(e bool) { enabled.Store(e) }

// SetOutput redirects debug output, e.g. into the log file while the TUI
// owns the terminal.
func SetOutput(l *log.Logger) {
	if l != nil {
		logger = l
	}
}

// Log writes a printf-style message.
func Log(format string, args ...any) {
	if !enabled.Load() {
		return
	}
	logger.Printf(format, args...)
}

// LogTiming records how long name took.
func LogTiming(name string, d time.Duration) {
	if !enabled.Load() {
		return
	}
	logger.Printf("%s took %v", name, d)
}

// LogEnterExit logs entry immediately and exit, with elapsed time, when the
// returned func runs:
//
//	defer debug.LogEnterExit("page.Bootstrap")()
func LogEnterExit(name string) func() {
	if !enabled.Load() {
		return func() {}
	}
	logger.Printf("-> %s", name)
	start := time.Now()
	return func() {
		logger.Printf("<- %s (%v)", name, time.Since(start))
	}
}

// Dump logs a value with its type.
func Dump(name string, v any) {
	if !enabled.Load() {
		return
	}
	logger.Printf("%s: %T = %+v", name, v, v)
}

// Assert panics with msg when cond is false. Only active when debug logging
// is on.
func Assert(cond bool, msg string) {
	if !enabled.Load() || cond {
		return
	}
	logger.Printf("ASSERTION FAILED: %s", msg)
	panic(fmt.Sprintf("debug assertion failed: %s", msg))
}
