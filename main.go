package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/soocke/table-calib-go/app"
	"github.com/soocke/table-calib-go/config"
)

const defaultConfigPath = "table-calib.json"

func main() {
	path := os.Getenv("TABLECALIB_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("config load failed", "path", path, "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)

	container, err := app.BuildContainer(cfg, logger)
	if err != nil {
		logger.Error("container build failed", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !app.NewApp(container).Run(ctx) {
		os.Exit(1)
	}
}
