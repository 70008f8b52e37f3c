// Package logging builds the shared slog logger: human-readable text on
// stderr plus an append-only run log on disk.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a logger writing to stderr and, when logFile is non-empty and
// openable, appending to that file as well. A file that cannot be opened is
// not fatal; the tool still logs to stderr.
func New(verbose bool, logFile string) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if logFile != "" {
		if f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			w = io.MultiWriter(os.Stderr, f)
		}
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
