// Package hierarchy decides whether a frame shows a table at all, spending
// as little work as possible: a cheap thumbnail pass, then full candidate
// detection, then a complete calibration, each behind its own time budget.
package hierarchy

import (
	"context"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/soocke/table-calib-go/config"
	"github.com/soocke/table-calib-go/domain/calibrate"
	"github.com/soocke/table-calib-go/domain/detect"
	"github.com/soocke/table-calib-go/domain/frame"
	"github.com/soocke/table-calib-go/domain/reliability"
)

const (
	levelFastName     = "fast_screen"
	levelModerateName = "moderate_detect"
	levelDeepName     = "deep_calibrate"
)

// LevelReport is the diagnostic record of one detection level.
type LevelReport struct {
	Level      int           `json:"level"`
	Name       string        `json:"name"`
	Confidence float64       `json:"confidence"`
	Elapsed    time.Duration `json:"elapsed"`
	Executed   bool          `json:"executed"`
}

// Outcome is one hierarchical detection decision.
type Outcome struct {
	Detected   bool          `json:"detected"`
	Confidence float64       `json:"confidence"`
	Levels     []LevelReport `json:"levels"`
	CacheHit   bool          `json:"cache_hit"`
}

// candidateSource and calibrator narrow the two heavy stages to what the
// levels actually call, which also keeps them swappable in tests.
type candidateSource interface {
	Detect(img *image.RGBA) []detect.Region
}

type calibrator interface {
	Calibrate(snap frame.Snapshot) calibrate.Result
}

// Detector escalates through three levels until one is decisive. Level entry
// points carry call counters so escalation behavior is observable.
type Detector struct {
	cfg    *config.Config
	source candidateSource
	calib  calibrator
	guard  *reliability.TimeoutGuard
	cache  *expirable.LRU[string, Outcome]
	logger *slog.Logger

	level1Calls atomic.Uint64
	level2Calls atomic.Uint64
	level3Calls atomic.Uint64
}

// NewDetector wires the three levels. The guard may be shared with other
// subsystems; budgets come from the config.
func NewDetector(cfg *config.Config, source *detect.Detector, calib *calibrate.Orchestrator, guard *reliability.TimeoutGuard, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := time.Duration(cfg.DetectCacheTTLSeconds) * time.Second
	return &Detector{
		cfg:    cfg,
		source: source,
		calib:  calib,
		guard:  guard,
		cache:  expirable.NewLRU[string, Outcome](cfg.DetectCacheSize, nil, ttl),
		logger: logger,
	}
}

// Detect runs the escalation for one snapshot. A cached positive outcome for
// the same layout short-circuits every level.
func (d *Detector) Detect(ctx context.Context, snap frame.Snapshot) Outcome {
	hash := frame.LayoutHash(snap.Image)
	if hash != "" {
		if cached, ok := d.cache.Get(hash); ok {
			cached.Levels = append([]LevelReport(nil), cached.Levels...)
			cached.CacheHit = true
			d.logger.Debug("hierarchy cache hit", slog.String("ui_hash", hash))
			return cached
		}
	}

	out := Outcome{Levels: []LevelReport{
		{Level: 1, Name: levelFastName},
		{Level: 2, Name: levelModerateName},
		{Level: 3, Name: levelDeepName},
	}}

	conf, err := d.runLevel(ctx, &out.Levels[0], d.cfg.Level1BudgetMillis,
		func(soft time.Time) float64 { return d.levelFast(snap, soft) })
	out.Confidence = conf
	if err != nil || conf < d.cfg.PromisingThreshold {
		return d.finish(hash, out)
	}

	conf, err = d.runLevel(ctx, &out.Levels[1], d.cfg.Level2BudgetMillis,
		func(soft time.Time) float64 { return d.levelModerate(snap, soft) })
	if err == nil {
		out.Confidence = conf
	}
	if err != nil || conf >= d.cfg.DefinitiveThreshold || conf < d.cfg.PromisingThreshold {
		return d.finish(hash, out)
	}

	conf, err = d.runLevel(ctx, &out.Levels[2], d.cfg.Level3BudgetMillis,
		func(time.Time) float64 { return d.levelDeep(snap) })
	if err == nil {
		out.Confidence = conf
	}
	return d.finish(hash, out)
}

// runLevel executes one level under its budget and records the diagnostic.
// On timeout the level's confidence must not be read; the caller keeps the
// last decisive value instead.
func (d *Detector) runLevel(ctx context.Context, rep *LevelReport, budgetMillis int, fn func(soft time.Time) float64) (float64, error) {
	budget := time.Duration(budgetMillis) * time.Millisecond
	start := time.Now()
	soft := start.Add(time.Duration(float64(budget) * softBudgetFraction))

	var conf float64
	err := d.guard.Execute(ctx, budget, func(context.Context) error {
		conf = fn(soft)
		return nil
	})
	rep.Elapsed = time.Since(start)
	rep.Executed = true
	if err != nil {
		d.logger.Warn("detection level degraded",
			slog.Int("level", rep.Level),
			slog.String("name", rep.Name),
			slog.Any("error", err))
		return 0, err
	}
	rep.Confidence = conf
	return conf, nil
}

// finish applies the decision threshold and caches positive outcomes. A
// negative outcome is never cached: the corner hash cannot tell an empty
// desktop from the same desktop with a table opened mid-screen, and a cached
// "no" would blind the caller for the whole TTL.
func (d *Detector) finish(hash string, out Outcome) Outcome {
	out.Detected = out.Confidence > d.cfg.DecisionThreshold
	if out.Detected && hash != "" {
		d.cache.Add(hash, out)
	}
	d.logger.Debug("hierarchy decision",
		slog.Bool("detected", out.Detected),
		slog.Float64("confidence", out.Confidence),
		slog.String("ui_hash", hash))
	return out
}
