package track

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/soocke/table-calib-go/config"
	"github.com/soocke/table-calib-go/domain/calibrate"
	"github.com/soocke/table-calib-go/domain/detect"
	"github.com/soocke/table-calib-go/domain/frame"
	"github.com/soocke/table-calib-go/domain/reliability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func testSnapshot() frame.Snapshot {
	return frame.Snapshot{
		Image:      solidImage(200, 150, color.RGBA{R: 0, G: 120, B: 40, A: 0xFF}),
		CapturedAt: time.Now(),
		Sequence:   1,
	}
}

type fakeSource struct {
	mu   sync.Mutex
	snap frame.Snapshot
}

func (f *fakeSource) LatestFrame() frame.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) set(snap frame.Snapshot) {
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
}

type fakeCalibrator struct {
	mu    sync.Mutex
	res   calibrate.Result
	calls int
}

func (f *fakeCalibrator) Calibrate(frame.Snapshot) calibrate.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.res
}

func (f *fakeCalibrator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeScorer struct {
	fn func(img *image.RGBA, kind detect.Kind) float64
}

func (f *fakeScorer) Score(img *image.RGBA, kind detect.Kind) float64 {
	if f.fn == nil {
		return 0
	}
	return f.fn(img, kind)
}

func constScorer(v float64) *fakeScorer {
	return &fakeScorer{fn: func(*image.RGBA, detect.Kind) float64 { return v }}
}

func detectedResult(roles map[string]detect.Region) calibrate.Result {
	return calibrate.Result{
		Regions:       roles,
		AccuracyScore: 1.0,
		TableDetected: true,
		Timestamp:     time.Now(),
	}
}

func tableRoles(conf float64) map[string]detect.Region {
	return map[string]detect.Region{
		"hero_card_1":      detect.NewRegion(image.Rect(80, 110, 110, 145), detect.KindCard, conf),
		"hero_card_2":      detect.NewRegion(image.Rect(115, 110, 145, 145), detect.KindCard, conf),
		"community_card_1": detect.NewRegion(image.Rect(40, 60, 65, 95), detect.KindCard, conf),
		"community_card_2": detect.NewRegion(image.Rect(70, 60, 95, 95), detect.KindCard, conf),
		"community_card_3": detect.NewRegion(image.Rect(100, 60, 125, 95), detect.KindCard, conf),
		"pot_display":      detect.NewRegion(image.Rect(80, 30, 140, 45), detect.KindPot, conf),
	}
}

func newTestTracker(cfg *config.Config, src FrameSource, calib Calibrator, scorer RegionScorer) *Tracker {
	logger := discardLogger()
	return NewTracker(cfg, src, calib, scorer,
		reliability.NewBreaker(cfg, logger),
		reliability.NewTimeoutGuard(logger),
		reliability.NewDedupGuard(cfg, logger),
		logger)
}

// quietConfig keeps the loop effectively idle so tests can drive ticks
// directly.
func quietConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.TickMillis = 60_000
	return cfg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestStart_FalseWhenNoTableDetected(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	calib := &fakeCalibrator{res: calibrate.Result{TableDetected: false, AccuracyScore: 0.2}}
	tr := newTestTracker(quietConfig(), src, calib, constScorer(0))

	if tr.Start() {
		t.Fatal("Start must return false when no table is detected")
	}
	if tr.Status().Running {
		t.Fatal("no loop may be launched after a failed Start")
	}
	// A following Stop is a safe no-op.
	tr.Stop()
	tr.Stop()
}

func TestStart_FalseOnEmptyFrame(t *testing.T) {
	src := &fakeSource{}
	calib := &fakeCalibrator{res: detectedResult(tableRoles(0.9))}
	tr := newTestTracker(quietConfig(), src, calib, constScorer(0))

	if tr.Start() {
		t.Fatal("Start must fail without a frame")
	}
	if calib.callCount() != 0 {
		t.Fatal("calibration must not run on the empty-frame sentinel")
	}
}

func TestStart_SeedsRegionsAndStopIsIdempotent(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	calib := &fakeCalibrator{res: detectedResult(tableRoles(0.9))}
	tr := newTestTracker(quietConfig(), src, calib, constScorer(0.9))

	if !tr.Start() {
		t.Fatal("Start should succeed on a detected table")
	}
	if !tr.Start() {
		t.Fatal("second Start on a running tracker is a no-op returning true")
	}

	st := tr.Status()
	if !st.Running {
		t.Fatal("tracker should report running")
	}
	if st.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if len(st.Regions) != 6 {
		t.Fatalf("expected 6 seeded regions, got %d", len(st.Regions))
	}
	for role, rs := range st.Regions {
		if rs.Confidence != 0.9 {
			t.Fatalf("%s seeded confidence = %v, want 0.9", role, rs.Confidence)
		}
	}

	tr.Stop()
	if tr.Status().Running {
		t.Fatal("tracker should report stopped")
	}
	tr.Stop()
}

func TestStatus_ReturnsDeepCopies(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	calib := &fakeCalibrator{res: detectedResult(tableRoles(0.9))}
	tr := newTestTracker(quietConfig(), src, calib, constScorer(0.9))
	if !tr.Start() {
		t.Fatal("Start should succeed")
	}
	defer tr.Stop()

	a := tr.Status()
	delete(a.Regions, "pot_display")
	if hist := a.Regions["hero_card_1"].History; len(hist) > 0 {
		hist[0] = -1
	}

	b := tr.Status()
	if _, ok := b.Regions["pot_display"]; !ok {
		t.Fatal("mutating a snapshot map must not affect later snapshots")
	}
	if hist := b.Regions["hero_card_1"].History; len(hist) > 0 && hist[0] == -1 {
		t.Fatal("mutating a snapshot history must not affect later snapshots")
	}
}

func TestTick_SkipsEmptyAndDuplicateFrames(t *testing.T) {
	src := &fakeSource{}
	calib := &fakeCalibrator{res: calibrate.Result{TableDetected: false}}
	tr := newTestTracker(quietConfig(), src, calib, constScorer(0.9))

	now := time.Now()
	tr.tick(now)
	if tr.skips != 1 {
		t.Fatalf("empty frame must skip the tick, skips = %d", tr.skips)
	}

	src.set(testSnapshot())
	tr.tick(now.Add(time.Second))
	if tr.skips != 1 {
		t.Fatalf("fresh frame must be processed, skips = %d", tr.skips)
	}
	tr.tick(now.Add(2 * time.Second))
	if tr.skips != 2 {
		t.Fatalf("byte-identical frame must be deduplicated, skips = %d", tr.skips)
	}
}

func TestObserve_PhaseTransitionNotifiesListeners(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	calib := &fakeCalibrator{res: detectedResult(tableRoles(0.9))}
	tr := newTestTracker(quietConfig(), src, calib, constScorer(0.9))

	var mu sync.Mutex
	var transitions [][2]Phase
	tr.AddPhaseListener(func(prev, next Phase) {
		mu.Lock()
		transitions = append(transitions, [2]Phase{prev, next})
		mu.Unlock()
	})

	now := time.Now()
	for role, reg := range tableRoles(0.9) {
		tr.regions[role] = newAdaptiveRegion(role, reg, 10, 0.6, now)
	}

	if err := tr.observe(src.LatestFrame(), now); err != nil {
		t.Fatalf("observe failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 {
		t.Fatalf("expected one transition, got %d", len(transitions))
	}
	if transitions[0][0] != PhaseUnknown || transitions[0][1] != PhaseFlop {
		t.Fatalf("expected unknown->flop, got %v->%v", transitions[0][0], transitions[0][1])
	}
	if tr.state.CommunityCount != 3 || !tr.state.HeroInHand {
		t.Fatalf("unexpected derived state: %+v", tr.state)
	}
}

func TestObserve_LowHealthTriggersRecalibration(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	calib := &fakeCalibrator{res: calibrate.Result{TableDetected: false}}
	tr := newTestTracker(quietConfig(), src, calib, constScorer(0.05))

	now := time.Now()
	for role, reg := range tableRoles(0.9) {
		tr.regions[role] = newAdaptiveRegion(role, reg, 10, 0.6, now)
	}

	if err := tr.observe(src.LatestFrame(), now); err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if calib.callCount() != 1 {
		t.Fatalf("expected one recalibration, got %d calls", calib.callCount())
	}
}

func TestUpdateHealth_StaleCountIgnoresPhaseExpectations(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	calib := &fakeCalibrator{}
	tr := newTestTracker(quietConfig(), src, calib, constScorer(0.9))

	seeded := time.Unix(1000, 0)
	hero := newAdaptiveRegion("hero_card_1",
		detect.NewRegion(image.Rect(80, 110, 110, 145), detect.KindCard, 0.9), 10, 0.6, seeded)
	tr.regions["hero_card_1"] = hero
	// Between hands the hero card is not expected on screen, but a region
	// unseen past the window still counts as stale.
	tr.state = GameState{Phase: PhaseBetweenHands, VisibleElements: map[string]bool{}}

	tr.updateHealth(seeded.Add(10 * time.Minute))
	if tr.staleFrac != 1.0 {
		t.Fatalf("stale fraction = %v, want 1.0 (1 of 1 regions unseen past the window)", tr.staleFrac)
	}

	tr.updateHealth(seeded.Add(10 * time.Second))
	if tr.staleFrac != 0 {
		t.Fatalf("stale fraction = %v, want 0 for a recently seen region", tr.staleFrac)
	}
}

func TestRecalibrate_KeepsRegionsOnUniformlyLowerScores(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	calib := &fakeCalibrator{res: detectedResult(tableRoles(0.3))}
	tr := newTestTracker(quietConfig(), src, calib, constScorer(0.9))

	now := time.Now()
	for role, reg := range tableRoles(0.9) {
		tr.regions[role] = newAdaptiveRegion(role, reg, 10, 0.6, now)
	}

	if err := tr.recalibrate(src.LatestFrame(), now); err != nil {
		t.Fatalf("recalibrate failed: %v", err)
	}
	for role, reg := range tr.regions {
		if reg.region.Confidence != 0.9 {
			t.Fatalf("%s was replaced by a lower-confidence region", role)
		}
		if reg.hist.count != 1 || reg.hist.latest() != 0.9 {
			t.Fatalf("%s history was reset without a replacement", role)
		}
	}
}

func TestRecalibrate_ReplacesAndAdopts(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	fresh := tableRoles(0.8)
	fresh["seat_1"] = detect.NewRegion(image.Rect(5, 5, 35, 35), detect.KindSeatMarker, 0.7)
	calib := &fakeCalibrator{res: detectedResult(fresh)}
	tr := newTestTracker(quietConfig(), src, calib, constScorer(0.9))

	now := time.Now()
	for role, reg := range tableRoles(0.4) {
		tr.regions[role] = newAdaptiveRegion(role, reg, 10, 0.6, now)
	}

	if err := tr.recalibrate(src.LatestFrame(), now); err != nil {
		t.Fatalf("recalibrate failed: %v", err)
	}
	hero := tr.regions["hero_card_1"]
	if hero.region.Confidence != 0.8 {
		t.Fatal("higher-confidence calibration must replace the tracked region")
	}
	if hero.hist.count != 1 || hero.hist.latest() != 0.8 {
		t.Fatal("replacement must reset the history to the new confidence")
	}
	if _, ok := tr.regions["seat_1"]; !ok {
		t.Fatal("new roles from recalibration must be adopted")
	}
}

func TestCalibrateNow_SingleFlightAndCircuitOpen(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	calib := &fakeCalibrator{res: detectedResult(tableRoles(0.9))}
	tr := newTestTracker(quietConfig(), src, calib, constScorer(0.9))

	tr.calibInFlight.Store(true)
	if _, err := tr.CalibrateNow(); !errors.Is(err, ErrCalibrationBusy) {
		t.Fatalf("expected ErrCalibrationBusy, got %v", err)
	}
	tr.calibInFlight.Store(false)

	if res, err := tr.CalibrateNow(); err != nil || !res.TableDetected {
		t.Fatalf("expected a detected result, got %+v, %v", res, err)
	}

	// Trip the breaker; the next on-demand calibration fails fast.
	for i := 0; i < 3; i++ {
		_ = tr.breaker.Execute(func() error { return errors.New("boom") })
	}
	before := calib.callCount()
	if _, err := tr.CalibrateNow(); !errors.Is(err, reliability.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calib.callCount() != before {
		t.Fatal("calibration must not run while the breaker is open")
	}
}

func TestCalibrateNow_NoFrame(t *testing.T) {
	tr := newTestTracker(quietConfig(), &fakeSource{}, &fakeCalibrator{}, constScorer(0))
	if _, err := tr.CalibrateNow(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}
}

func TestTracker_LoopTicksAndStops(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TickMillis = 10
	src := &fakeSource{snap: testSnapshot()}
	calib := &fakeCalibrator{res: detectedResult(tableRoles(0.9))}
	tr := newTestTracker(cfg, src, calib, constScorer(0.9))

	if !tr.Start() {
		t.Fatal("Start should succeed")
	}
	waitFor(t, 2*time.Second, func() bool { return tr.Status().Ticks > 2 })

	st := tr.Status()
	if st.Phase != PhaseFlop {
		t.Fatalf("expected flop with 3 visible board cards, got %v", st.Phase)
	}
	if st.Health < 0.5 {
		t.Fatalf("healthy table should score above the floor, got %v", st.Health)
	}

	tr.Stop()
	after := tr.Status().Ticks
	time.Sleep(50 * time.Millisecond)
	if tr.Status().Ticks != after {
		t.Fatal("loop must not tick after Stop")
	}
	if tr.Status().Running {
		t.Fatal("Status must report stopped")
	}
}
