package chat

import (
	"io"
	"log/slog"
)

// Logger is the interface for structured logging.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// defaultLogger returns the default slog logger from the standard library.
func defaultLogger() Logger {
	return slog.Default()
}

var verbosityLevels = []slog.Level{
	slog.LevelInfo,
	slog.LevelDebug,
}

// NewLogger returns a text logger writing to w. verbosity counts repeated -v
// flags: 0 logs info and above, 1 or more adds debug.
func NewLogger(w io.Writer, verbosity int) *slog.Logger {
	if verbosity < 0 {
		verbosity = 0
	}
	if verbosity >= len(verbosityLevels) {
		verbosity = len(verbosityLevels) - 1
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: verbosityLevels[verbosity]}))
}
