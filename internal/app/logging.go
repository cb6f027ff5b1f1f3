package app

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"github.com/agis/unical/internal/output"
)

// newLogger builds the diagnostics logger. Success output never goes
// through it.
func newLogger(w io.Writer, ro *globalOptions) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case ro.Verbose:
		level = slog.LevelDebug
	case ro.Quiet:
		level = slog.LevelError
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    ro.NoColor || !output.IsTerminal(w),
	}))
}
