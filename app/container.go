package app

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/soocke/table-calib-go/config"
	"github.com/soocke/table-calib-go/domain/calibrate"
	"github.com/soocke/table-calib-go/domain/detect"
	"github.com/soocke/table-calib-go/domain/frame"
	"github.com/soocke/table-calib-go/domain/hierarchy"
	"github.com/soocke/table-calib-go/domain/reliability"
	"github.com/soocke/table-calib-go/domain/textread"
	"github.com/soocke/table-calib-go/domain/track"
)

// Container assembles the capture service, the detection pipeline and the
// tracker. All caches and mutable state live inside these instances; nothing
// is shared as ambient globals.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Frames       frame.Service
	Reader       textread.Reader
	Detector     *detect.Detector
	Scorer       *detect.RegionScorer
	Store        *calibrate.Store
	Orchestrator *calibrate.Orchestrator
	Hierarchy    *hierarchy.Detector

	Breaker *reliability.Breaker
	Guard   *reliability.TimeoutGuard
	Dedup   *reliability.DedupGuard

	Tracker *track.Tracker
}

// BuildContainer constructs all components. Side effects are limited to
// loading the optional card template and opening the calibration store.
func BuildContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	interval := time.Duration(cfg.CaptureIntervalMillis) * time.Millisecond
	c.Frames = frame.NewService(logger, tableRectFn(cfg), interval)

	reader, err := textread.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build text reader: %w", err)
	}
	c.Reader = reader

	c.Detector = detect.NewDetector(logger)
	template, err := detect.NewTemplateScorer(cfg, logger)
	if err != nil {
		// A missing template only disables template scoring; geometry
		// scoring still works.
		logger.Warn("card template unavailable", slog.Any("error", err))
	}
	c.Scorer = detect.NewRegionScorer(reader, template, logger)

	if cfg.StorePath != "" {
		store, err := calibrate.OpenStore(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open calibration store: %w", err)
		}
		c.Store = store
	}
	c.Orchestrator = calibrate.NewOrchestrator(cfg, c.Detector, reader, c.Store, logger)

	c.Breaker = reliability.NewBreaker(cfg, logger)
	c.Guard = reliability.NewTimeoutGuard(logger)
	c.Dedup = reliability.NewDedupGuard(cfg, logger)

	c.Hierarchy = hierarchy.NewDetector(cfg, c.Detector, c.Orchestrator, c.Guard, logger)
	c.Tracker = track.NewTracker(cfg, c.Frames, c.Orchestrator, c.Scorer,
		c.Breaker, c.Guard, c.Dedup, logger)
	return c, nil
}

// Close releases the container's external resources.
func (c *Container) Close() {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.Logger.Warn("closing calibration store", slog.Any("error", err))
		}
	}
	if c.Reader != nil {
		if err := c.Reader.Close(); err != nil {
			c.Logger.Warn("closing text reader", slog.Any("error", err))
		}
	}
}

// tableRectFn turns the configured table rectangle into a capture rect
// provider. An all-zero rectangle captures the full screen.
func tableRectFn(cfg *config.Config) func() *image.Rectangle {
	return func() *image.Rectangle {
		if cfg.TableW <= 0 || cfg.TableH <= 0 {
			return nil
		}
		r := image.Rect(cfg.TableX, cfg.TableY, cfg.TableX+cfg.TableW, cfg.TableY+cfg.TableH)
		return &r
	}
}
