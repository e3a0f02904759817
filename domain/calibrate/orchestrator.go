package calibrate

import (
	"image"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/soocke/table-calib-go/assets"
	"github.com/soocke/table-calib-go/config"
	"github.com/soocke/table-calib-go/domain/detect"
	"github.com/soocke/table-calib-go/domain/frame"
	"github.com/soocke/table-calib-go/domain/textread"
)

// Nominal frame size for scaling fallback priors when no pixels exist.
const (
	fallbackFrameW = 800
	fallbackFrameH = 600
)

// Orchestrator runs the full calibration pipeline: candidate detection,
// role assignment, the validation battery and tiered caching. It never
// panics and never returns an empty region map.
type Orchestrator struct {
	cfg      *config.Config
	detector *detect.Detector
	reader   textread.Reader
	store    *Store
	archiver *Archiver
	cache    *expirable.LRU[string, Result]
	priors   []assets.RegionPrior
	logger   *slog.Logger
}

// NewOrchestrator wires the pipeline. store may be nil when persistence is
// disabled; the snapshot archiver only engages in debug runs.
func NewOrchestrator(cfg *config.Config, detector *detect.Detector, reader textread.Reader, store *Store, logger *slog.Logger) *Orchestrator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	priors, err := assets.LayoutPriors()
	if err != nil {
		logger.Error("layout priors unavailable", slog.Any("error", err))
	}
	ttl := time.Duration(cfg.DetectCacheTTLSeconds) * time.Second
	o := &Orchestrator{
		cfg:      cfg,
		detector: detector,
		reader:   reader,
		store:    store,
		cache:    expirable.NewLRU[string, Result](cfg.CalibCacheSize, nil, ttl),
		priors:   priors,
		logger:   logger,
	}
	if cfg.Debug && cfg.ArchiveDir != "" {
		o.archiver = NewArchiver(cfg.ArchiveDir, logger)
	}
	return o
}

// Calibrate derives a named layout from one snapshot. Whatever goes wrong
// inside the pipeline, the caller receives a usable fallback result.
func (o *Orchestrator) Calibrate(snap frame.Snapshot) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("calibration panicked",
				slog.Any("recover", r),
				slog.String("stack", string(debug.Stack())))
			res = o.fallbackResult(snap)
		}
	}()
	return o.calibrate(snap)
}

func (o *Orchestrator) calibrate(snap frame.Snapshot) Result {
	start := time.Now()
	hash := frame.LayoutHash(snap.Image)
	if hash != "" {
		if cached, ok := o.cache.Get(hash); ok {
			o.logger.Debug("calibration cache hit", slog.String("ui_hash", hash))
			return cached
		}
		if warm, ok := o.warmStart(hash); ok {
			return warm
		}
	}

	cands := o.detector.Detect(snap.Image)
	asn := o.assignRoles(snap.Image, cands)
	tests := o.validate(asn)
	accuracy := accuracyScore(tests)
	detected := o.tableDetected(cands, asn)

	regions := asn.roles
	if len(regions) == 0 {
		regions = o.fallbackRegions(snap.Image)
	}

	res := Result{
		Regions:         regions,
		AccuracyScore:   accuracy,
		ValidationTests: tests,
		TableDetected:   detected,
		Timestamp:       time.Now().UTC(),
	}

	tier := res.Tier(o.cfg.ExcellentScore, o.cfg.AcceptableScore)
	if hash != "" && accuracy >= o.cfg.AcceptableScore {
		o.cache.Add(hash, res)
	}
	if hash != "" && accuracy >= o.cfg.ExcellentScore {
		o.persist(hash, res)
		o.archiver.Save(hash, snap)
	}

	o.logger.Info("calibration complete",
		slog.String("ui_hash", hash),
		slog.String("tier", tier),
		slog.Float64("accuracy", accuracy),
		slog.Bool("table_detected", detected),
		slog.Int("candidates", len(cands)),
		slog.Int("regions", len(regions)),
		slog.Duration("elapsed", time.Since(start)))
	if accuracy < o.cfg.ExcellentScore {
		o.logger.Debug("calibration checks failed",
			slog.Any("failed", failedChecks(tests)))
	}
	return res
}

// warmStart reuses the latest persisted excellent calibration for a known
// layout so a restart does not pay for a cold derivation.
func (o *Orchestrator) warmStart(hash string) (Result, bool) {
	if o.store == nil {
		return Result{}, false
	}
	rec, ok, err := o.store.Latest(hash)
	if err != nil {
		o.logger.Error("calibration store lookup", slog.Any("error", err))
		return Result{}, false
	}
	if !ok || rec.Result.AccuracyScore < o.cfg.ExcellentScore {
		return Result{}, false
	}
	o.cache.Add(hash, rec.Result)
	o.logger.Info("calibration warm start",
		slog.String("ui_hash", hash),
		slog.Time("saved_at", rec.SavedAt))
	return rec.Result, true
}

func (o *Orchestrator) persist(hash string, res Result) {
	rec := NewRecord(hash, res)
	if o.store != nil {
		if err := o.store.Put(rec); err != nil {
			o.logger.Error("calibration store put", slog.Any("error", err))
		}
	}
	if o.cfg.RecordPath != "" {
		if err := SaveRecord(o.cfg.RecordPath, rec); err != nil {
			o.logger.Error("calibration record save", slog.Any("error", err))
		}
	}
}

// tableDetected decides whether the frame looks like a table at all: strong
// felt coverage, or enough structure including at least one card.
func (o *Orchestrator) tableDetected(cands []detect.Region, asn assignment) bool {
	for _, c := range cands {
		if c.Kind == detect.KindPot && c.Confidence >= o.cfg.ConfidenceFloor {
			return true
		}
	}
	cards := 0
	for _, c := range cands {
		if c.Kind == detect.KindCard {
			cards++
		}
	}
	return cards > 0 && len(asn.roles) >= o.cfg.MinRegionCount
}

// fallbackRegions scales the embedded priors to the frame so downstream
// consumers always have coordinates to watch, just at low confidence.
func (o *Orchestrator) fallbackRegions(img *image.RGBA) map[string]detect.Region {
	w, h := fallbackFrameW, fallbackFrameH
	if img != nil && !img.Bounds().Empty() {
		w, h = img.Bounds().Dx(), img.Bounds().Dy()
	}
	regions := make(map[string]detect.Region, len(o.priors))
	for _, p := range o.priors {
		x0 := int(p.X * float64(w))
		y0 := int(p.Y * float64(h))
		x1 := x0 + int(p.W*float64(w))
		y1 := y0 + int(p.H*float64(h))
		r := detect.NewRegion(image.Rect(x0, y0, x1, y1), detect.Kind(p.Kind), p.Confidence)
		regions[p.Role] = r
	}
	return regions
}

func (o *Orchestrator) fallbackResult(snap frame.Snapshot) Result {
	tests := make(map[string]bool, len(checkNames))
	for _, name := range checkNames {
		tests[name] = false
	}
	return Result{
		Regions:         o.fallbackRegions(snap.Image),
		AccuracyScore:   0,
		ValidationTests: tests,
		TableDetected:   false,
		Timestamp:       time.Now().UTC(),
	}
}
