package logger

import (
	"github.com/lmittmann/tint"
	"log/slog"
	"os"
	"time"
)

type Logger = *slog.Logger

// NewLogger writes diagnostics to stderr so stdout stays free for record
// output.
func NewLogger(verbose bool) Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
}
