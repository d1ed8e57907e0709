package main

import (
	"log/slog"
	"os"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/logging"
)

func setupLogger(format, level, instance string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	l := logging.New(format, lvl, os.Stderr).With("app", "lauda-server", "instance", instance)
	logging.Set(l)
	return l
}
