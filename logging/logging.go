// Package logging provides the ambient structured logger used by the
// virtmem allocator. It defaults to discarding all output, so embedding the
// allocator in a resource-constrained host costs nothing unless a caller
// opts in with SetLogger or Init.
package logging

import (
	"io"
	"log/slog"
)

// L is the shared logger instance. It discards everything until Init or
// SetLogger is called.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// SetLogger replaces the shared logger outright, for callers that already
// maintain their own *slog.Logger and want allocator diagnostics folded in.
func SetLogger(l *slog.Logger) {
	if l != nil {
		L = l
	}
}

// Init configures a simple text-handler logger at the given level. Passing
// io.Discard as w disables logging, matching the zero-value default.
func Init(w io.Writer, level slog.Level) {
	L = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
