// Package logging wraps log/slog the way the teacher wrapped its own
// debugLog helpers: a per-component logger gated by a debug flag, so
// verbose tracing never fires in production builds.
package logging

import (
	"log/slog"
	"os"
)

// Logger is a thin slog.Logger handle scoped to one subsystem, with an
// explicit Debug method gated on a construction-time flag rather than
// slog's own level filtering, matching the teacher's debugLog(component,
// msg, err, debug) signature.
type Logger struct {
	l     *slog.Logger
	debug bool
}

var defaultBase = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

// New returns a component-scoped logger. base may be nil to use the
// process default.
func New(component string, debug bool, base *slog.Logger) *Logger {
	if base == nil {
		base = defaultBase
	}
	return &Logger{l: base.With("component", component), debug: debug}
}

func (lg *Logger) Debug(msg string, args ...any) {
	if lg == nil || !lg.debug {
		return
	}
	lg.l.Debug(msg, args...)
}

func (lg *Logger) Info(msg string, args ...any) {
	if lg == nil {
		return
	}
	lg.l.Info(msg, args...)
}

func (lg *Logger) Warn(msg string, args ...any) {
	if lg == nil {
		return
	}
	lg.l.Warn(msg, args...)
}

func (lg *Logger) Error(msg string, args ...any) {
	if lg == nil {
		return
	}
	lg.l.Error(msg, args...)
}
