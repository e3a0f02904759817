package main

import (
	"log/slog"
	"os"
)

// NewLogger returns the process-wide JSON logger. Debug runs lower the level
// so the calibration and tracker stats lines show up.
func NewLogger(level slog.Leveler) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
