package hierarchy

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/soocke/table-calib-go/config"
	"github.com/soocke/table-calib-go/domain/calibrate"
	"github.com/soocke/table-calib-go/domain/detect"
	"github.com/soocke/table-calib-go/domain/frame"
	"github.com/soocke/table-calib-go/domain/reliability"
	"github.com/soocke/table-calib-go/domain/textread"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func drawRing(img *image.RGBA, cx, cy, radius, stroke int, c color.RGBA) {
	rOut := float64(radius) + float64(stroke)/2
	rIn := float64(radius) - float64(stroke)/2
	for y := cy - radius - stroke; y <= cy+radius+stroke; y++ {
		for x := cx - radius - stroke; x <= cx+radius+stroke; x++ {
			d := math.Hypot(float64(x-cx), float64(y-cy))
			if d >= rIn && d <= rOut {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

var (
	feltGreen = color.RGBA{R: 0, G: 120, B: 40, A: 0xFF}
	cardWhite = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	flatGray  = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
)

type stubSource struct {
	regions []detect.Region
}

func (s *stubSource) Detect(*image.RGBA) []detect.Region { return s.regions }

type stubCalibrator struct {
	res calibrate.Result
}

func (s *stubCalibrator) Calibrate(frame.Snapshot) calibrate.Result { return s.res }

// silentReader satisfies textread.Reader for the integration test.
type silentReader struct{}

func (silentReader) Read(*image.RGBA, image.Rectangle) (string, float64) { return "", 0 }
func (silentReader) Close() error                                        { return nil }

var _ textread.Reader = silentReader{}

func stubDetector(source candidateSource, calib calibrator) *Detector {
	return &Detector{
		cfg:    config.DefaultConfig(),
		source: source,
		calib:  calib,
		guard:  reliability.NewTimeoutGuard(discardLogger()),
		cache:  expirable.NewLRU[string, Outcome](8, nil, time.Minute),
		logger: discardLogger(),
	}
}

func regionsOfKinds(kinds ...detect.Kind) []detect.Region {
	out := make([]detect.Region, len(kinds))
	for i, k := range kinds {
		out[i] = detect.Region{X: 20 * i, Y: 300, Width: 18, Height: 18, Confidence: 0.7, Kind: k}
	}
	return out
}

func TestDetectStopsAtLevelOneOnFlatFrame(t *testing.T) {
	d := stubDetector(
		&stubSource{regions: regionsOfKinds(detect.KindCard, detect.KindText)},
		&stubCalibrator{},
	)

	out := d.Detect(context.Background(), frame.Snapshot{Image: solidImage(320, 240, flatGray)})

	if out.Detected {
		t.Error("flat frame detected as a table")
	}
	if got := d.level1Calls.Load(); got != 1 {
		t.Errorf("level 1 calls = %d, want 1", got)
	}
	if got := d.level2Calls.Load(); got != 0 {
		t.Errorf("level 2 calls = %d, want 0", got)
	}
	if got := d.level3Calls.Load(); got != 0 {
		t.Errorf("level 3 calls = %d, want 0", got)
	}
	if !out.Levels[0].Executed || out.Levels[1].Executed || out.Levels[2].Executed {
		t.Errorf("executed flags = %v %v %v, want only level 1",
			out.Levels[0].Executed, out.Levels[1].Executed, out.Levels[2].Executed)
	}
}

func TestDetectStopsAtLevelTwoWhenDefinitive(t *testing.T) {
	d := stubDetector(
		&stubSource{regions: regionsOfKinds(
			detect.KindCard, detect.KindCard, detect.KindText,
			detect.KindText, detect.KindButton, detect.KindPot)},
		&stubCalibrator{},
	)
	snap := frame.Snapshot{Image: solidImage(640, 480, feltGreen)}

	out := d.Detect(context.Background(), snap)

	if !out.Detected {
		t.Fatalf("definitive candidate set not detected, confidence %v", out.Confidence)
	}
	if out.Confidence < d.cfg.DefinitiveThreshold {
		t.Errorf("confidence = %v, want >= %v", out.Confidence, d.cfg.DefinitiveThreshold)
	}
	if got := d.level3Calls.Load(); got != 0 {
		t.Errorf("level 3 calls = %d, deep level should have been skipped", got)
	}
	if out.Levels[2].Executed {
		t.Error("deep level marked executed")
	}

	// The positive outcome is cached by layout hash.
	again := d.Detect(context.Background(), snap)
	if !again.CacheHit {
		t.Error("second detection missed the cache")
	}
	if got := d.level1Calls.Load(); got != 1 {
		t.Errorf("level 1 calls after cache hit = %d, want 1", got)
	}
}

func TestDetectRunsDeepLevelInBetween(t *testing.T) {
	// Four card candidates: enough to pass promising, not enough for a
	// definitive stop, forcing the deep level.
	res := calibrate.Result{
		Regions: map[string]detect.Region{
			calibrate.RoleHeroCard1: {X: 280, Y: 380, Width: 57, Height: 82, Confidence: 0.9, Kind: detect.KindCard},
			calibrate.RoleHeroCard2: {X: 350, Y: 380, Width: 57, Height: 82, Confidence: 0.9, Kind: detect.KindCard},
			calibrate.RolePot:       {X: 300, Y: 150, Width: 76, Height: 24, Confidence: 1.0, Kind: detect.KindPot},
		},
		AccuracyScore: 0.8,
		TableDetected: true,
	}
	d := stubDetector(
		&stubSource{regions: regionsOfKinds(
			detect.KindCard, detect.KindCard, detect.KindCard, detect.KindCard)},
		&stubCalibrator{res: res},
	)

	out := d.Detect(context.Background(), frame.Snapshot{Image: solidImage(640, 480, feltGreen)})

	if got := d.level3Calls.Load(); got != 1 {
		t.Fatalf("level 3 calls = %d, want 1", got)
	}
	if !out.Levels[2].Executed {
		t.Error("deep level not marked executed")
	}
	// accuracy 0.8, table detected, fully consistent layout.
	want := deepAccuracyWeight*0.8 + deepTableWeight + deepConsistencyWeight
	if math.Abs(out.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", out.Confidence, want)
	}
	if !out.Detected {
		t.Error("deep level confidence above threshold but not detected")
	}
}

func TestLevelModerateSkipsSubCheckPastSoftDeadline(t *testing.T) {
	d := stubDetector(
		&stubSource{regions: regionsOfKinds(
			detect.KindCard, detect.KindCard, detect.KindText,
			detect.KindText, detect.KindButton, detect.KindPot)},
		&stubCalibrator{},
	)
	snap := frame.Snapshot{Image: solidImage(64, 64, feltGreen)}

	full := d.levelModerate(snap, time.Now().Add(time.Hour))
	skipped := d.levelModerate(snap, time.Now().Add(-time.Second))

	if math.Abs(full-1.0) > 1e-9 {
		t.Errorf("full sub-check confidence = %v, want 1.0", full)
	}
	if math.Abs(skipped-moderateCandWeight) > 1e-9 {
		t.Errorf("skipped sub-check confidence = %v, want only the count term %v",
			skipped, moderateCandWeight)
	}
}

func TestDetectDoesNotCacheNegativeOutcomes(t *testing.T) {
	d := stubDetector(&stubSource{}, &stubCalibrator{})
	snap := frame.Snapshot{Image: solidImage(320, 240, flatGray)}

	first := d.Detect(context.Background(), snap)
	second := d.Detect(context.Background(), snap)

	if first.Detected || second.Detected {
		t.Fatal("flat frame detected")
	}
	if second.CacheHit {
		t.Error("negative outcome was cached")
	}
	if got := d.level1Calls.Load(); got != 2 {
		t.Errorf("level 1 calls = %d, want 2 (one per detection)", got)
	}
}

func TestConsistencyScore(t *testing.T) {
	snap := frame.Snapshot{Image: solidImage(640, 480, flatGray)}
	card := func(x, y int) detect.Region {
		return detect.Region{X: x, Y: y, Width: 57, Height: 82, Kind: detect.KindCard}
	}

	t.Run("sane layout", func(t *testing.T) {
		res := calibrate.Result{Regions: map[string]detect.Region{
			calibrate.RoleHeroCard1:             card(280, 380),
			calibrate.RoleHeroCard2:             card(350, 380),
			calibrate.RolePot:                   {X: 300, Y: 150, Width: 76, Height: 24, Kind: detect.KindPot},
			calibrate.RoleCommunityPrefix + "1": card(200, 200),
			calibrate.RoleCommunityPrefix + "2": card(270, 200),
		}}
		if got := consistencyScore(res, snap); got != 1.0 {
			t.Errorf("score = %v, want 1.0", got)
		}
	})

	t.Run("overlapping hero pair fails one check", func(t *testing.T) {
		res := calibrate.Result{Regions: map[string]detect.Region{
			calibrate.RoleHeroCard1: card(280, 380),
			calibrate.RoleHeroCard2: card(290, 380),
		}}
		// Two applicable checks: hero sanity (fails) and in-bounds (passes).
		if got := consistencyScore(res, snap); math.Abs(got-0.5) > 1e-9 {
			t.Errorf("score = %v, want 0.5", got)
		}
	})

	t.Run("disordered board fails one check", func(t *testing.T) {
		res := calibrate.Result{Regions: map[string]detect.Region{
			calibrate.RoleCommunityPrefix + "1": card(270, 200),
			calibrate.RoleCommunityPrefix + "2": card(200, 200),
		}}
		if got := consistencyScore(res, snap); math.Abs(got-0.5) > 1e-9 {
			t.Errorf("score = %v, want 0.5", got)
		}
	})

	t.Run("nothing to judge scores full", func(t *testing.T) {
		if got := consistencyScore(calibrate.Result{}, frame.Snapshot{}); got != 1.0 {
			t.Errorf("score = %v, want 1.0", got)
		}
	})
}

func TestDetectIntegrationFullPipeline(t *testing.T) {
	img := solidImage(640, 480, feltGreen)
	fillRect(img, image.Rect(280, 380, 337, 462), cardWhite)
	fillRect(img, image.Rect(350, 380, 407, 462), cardWhite)
	fillRect(img, image.Rect(480, 420, 600, 460), color.RGBA{R: 0xC8, G: 0xC8, B: 0xC8, A: 0xFF})
	drawRing(img, 80, 240, 30, 4, cardWhite)

	cfg := config.DefaultConfig()
	det := detect.NewDetector(discardLogger())
	orch := calibrate.NewOrchestrator(cfg, det, silentReader{}, nil, discardLogger())
	d := NewDetector(cfg, det, orch, reliability.NewTimeoutGuard(discardLogger()), discardLogger())

	out := d.Detect(context.Background(), frame.Snapshot{Image: img})

	if !out.Detected {
		t.Fatalf("synthetic table not detected, confidence %v, levels %+v",
			out.Confidence, out.Levels)
	}
	if got := d.level3Calls.Load(); got != 0 {
		t.Errorf("level 3 ran on a frame the moderate level should decide, calls = %d", got)
	}
}
