package app

import (
	"io"
	"log/slog"
)

// parseLevel maps a --log-level value to a slog level. Unknown values fall
// back to info.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// newLogger builds the logger for one App. It never touches slog.Default, so
// several apps can run side by side in tests.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(levelStr)}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
