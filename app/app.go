package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/soocke/table-calib-go/debug"
	"github.com/soocke/table-calib-go/domain/frame"
)

const (
	firstFrameTimeout = 10 * time.Second
	statusLogInterval = 30 * time.Second
)

// App drives the engine lifecycle: capture service, table detection gate,
// tracker, and clean shutdown on context cancellation.
type App struct {
	c      *Container
	logger *slog.Logger
}

// NewApp wraps a built container.
func NewApp(c *Container) *App {
	return &App{c: c, logger: c.Logger}
}

// Run starts capturing, waits for a table, runs the tracker until ctx is
// cancelled, and shuts everything down in reverse order. Returns false when
// no table was ever detected.
func (a *App) Run(ctx context.Context) bool {
	cfg := a.c.Config
	if cfg.Debug {
		debug.StartGoroutineLogger(time.Minute, a.logger)
		debug.StartMemLogger(time.Minute, a.logger)
	}

	a.c.Frames.Start()
	defer a.c.Frames.Stop()

	snap, ok := a.waitForFrame(ctx)
	if !ok {
		a.logger.Error("no frame captured, giving up")
		return false
	}

	outcome := a.c.Hierarchy.Detect(ctx, snap)
	if !outcome.Detected {
		a.logger.Info("no table on screen",
			slog.Float64("confidence", outcome.Confidence))
		return false
	}
	a.logger.Info("table detected",
		slog.Float64("confidence", outcome.Confidence),
		slog.Bool("cache_hit", outcome.CacheHit))

	if !a.c.Tracker.Start() {
		a.logger.Error("tracker failed to start")
		return false
	}
	defer a.c.Tracker.Stop()

	ticker := time.NewTicker(statusLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutting down")
			return true
		case <-ticker.C:
			st := a.c.Tracker.Status()
			a.logger.Info("tracker status",
				slog.String("phase", st.PhaseName),
				slog.Float64("health", st.Health),
				slog.Float64("stale_fraction", st.StaleFraction),
				slog.Uint64("ticks", st.Ticks),
				slog.Uint64("recalibrations", st.Recalibrations),
				slog.String("breaker", st.BreakerState))
		}
	}
}

// waitForFrame polls the capture service until a non-empty snapshot arrives
// or the deadline passes.
func (a *App) waitForFrame(ctx context.Context) (frame.Snapshot, bool) {
	deadline := time.Now().Add(firstFrameTimeout)
	for time.Now().Before(deadline) {
		if snap := a.c.Frames.LatestFrame(); !snap.Empty() {
			return snap, true
		}
		select {
		case <-ctx.Done():
			return frame.Snapshot{}, false
		case <-time.After(100 * time.Millisecond):
		}
	}
	return frame.Snapshot{}, false
}
