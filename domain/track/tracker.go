package track

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/table-calib-go/config"
	"github.com/soocke/table-calib-go/domain/calibrate"
	"github.com/soocke/table-calib-go/domain/frame"
	"github.com/soocke/table-calib-go/domain/reliability"
)

const statsLogInterval = 30 * time.Second

// Tracker owns the monitoring loop. All mutable tracking state (regions,
// game state, histories) belongs to the loop goroutine; other goroutines see
// it only through the atomically swapped Status snapshot.
type Tracker struct {
	cfg     *config.Config
	source  FrameSource
	calib   Calibrator
	scorer  RegionScorer
	breaker *reliability.Breaker
	guard   *reliability.TimeoutGuard
	dedup   *reliability.DedupGuard
	logger  *slog.Logger

	mu        sync.Mutex
	running   bool
	done      chan struct{}
	finished  chan struct{}
	listeners []PhaseListener

	calibInFlight atomic.Bool
	status        atomic.Pointer[Status]

	// loop-owned
	sessionID string
	regions   map[string]*AdaptiveRegion
	state     GameState
	health    float64
	staleFrac float64
	ticks     uint64
	skips     uint64
	recals    uint64
	clock     sessionClock
	lastStats time.Time
}

// NewTracker wires the loop's collaborators. The breaker and guard may be
// shared with other subsystems; dedup must be used by this tracker only.
func NewTracker(cfg *config.Config, source FrameSource, calib Calibrator, scorer RegionScorer,
	breaker *reliability.Breaker, guard *reliability.TimeoutGuard, dedup *reliability.DedupGuard,
	logger *slog.Logger) *Tracker {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		cfg:     cfg,
		source:  source,
		calib:   calib,
		scorer:  scorer,
		breaker: breaker,
		guard:   guard,
		dedup:   dedup,
		logger:  logger,
		regions: make(map[string]*AdaptiveRegion),
		state:   GameState{Phase: PhaseUnknown, VisibleElements: map[string]bool{}},
	}
	t.status.Store(&Status{Phase: PhaseUnknown, PhaseName: PhaseUnknown.String()})
	return t
}

// AddPhaseListener registers a transition listener. Register before Start;
// listeners run on the loop goroutine.
func (t *Tracker) AddPhaseListener(l PhaseListener) {
	if l == nil {
		return
	}
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
}

// Start runs one synchronous calibration and, when a table is detected,
// seeds the tracked regions and launches the loop. Returns false without
// starting anything when no table is found. Calling Start on a running
// tracker is a no-op returning true.
func (t *Tracker) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return true
	}

	snap := t.source.LatestFrame()
	res, err := t.runCalibration(snap)
	if err != nil {
		t.logger.Warn("initial calibration failed", slog.Any("error", err))
		return false
	}
	if !res.TableDetected {
		t.logger.Info("no table detected, tracker not started",
			slog.Float64("accuracy", res.AccuracyScore))
		return false
	}

	now := time.Now()
	t.sessionID = uuid.NewString()
	t.regions = make(map[string]*AdaptiveRegion, len(res.Regions))
	for role, reg := range res.Regions {
		t.regions[role] = newAdaptiveRegion(role, reg, t.cfg.HistorySize, t.cfg.ConfidenceThreshold, now)
	}
	t.state = GameState{Phase: PhaseUnknown, VisibleElements: map[string]bool{}}
	for _, reg := range t.regions {
		reg.expected = reg.req.expectedIn(t.state)
	}
	t.health = res.AccuracyScore
	t.staleFrac = 0
	t.ticks, t.skips, t.recals = 0, 0, 0
	t.clock = sessionClock{}
	t.clock.onTick(true, now)
	t.lastStats = now

	t.done = make(chan struct{})
	t.finished = make(chan struct{})
	t.running = true
	t.publish(now)

	t.logger.Info("tracker started",
		slog.String("session_id", t.sessionID),
		slog.Int("regions", len(t.regions)),
		slog.Float64("accuracy", res.AccuracyScore))
	go t.loop(t.done, t.finished)
	return true
}

// Stop signals the loop and waits up to one worst-case tick for it to exit.
// Idempotent; a second Stop returns immediately.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.done)
	finished := t.finished
	t.mu.Unlock()

	select {
	case <-finished:
		now := time.Now()
		t.mu.Lock()
		t.clock.onTick(false, now)
		t.publish(now)
		t.mu.Unlock()
		t.logger.Info("tracker stopped", slog.String("session_id", t.sessionID))
	case <-time.After(t.joinTimeout()):
		// The loop still owns the tracking state; leave it alone.
		t.logger.Warn("tracker loop did not exit within join timeout",
			slog.Duration("timeout", t.joinTimeout()))
	}
}

// Status returns a deep copy of the latest published snapshot. Always
// succeeds, even while the tracker is degraded or stopped.
func (t *Tracker) Status() Status {
	s := *t.status.Load()
	regions := make(map[string]RegionStatus, len(s.Regions))
	for role, rs := range s.Regions {
		rs.History = append([]float64(nil), rs.History...)
		regions[role] = rs
	}
	s.Regions = regions
	return s
}

// CalibrateNow runs an on-demand calibration from any goroutine. It shares
// the breaker and the single-flight guard with the loop: while the breaker
// is open it returns ErrCircuitOpen, and while another calibration runs it
// returns ErrCalibrationBusy. The result does not touch the tracked regions;
// only the loop merges calibrations.
func (t *Tracker) CalibrateNow() (calibrate.Result, error) {
	if !t.calibInFlight.CompareAndSwap(false, true) {
		return calibrate.Result{}, ErrCalibrationBusy
	}
	defer t.calibInFlight.Store(false)
	snap := t.source.LatestFrame()
	return t.runCalibration(snap)
}

// runCalibration executes one calibration through the shared breaker and the
// deep-level time budget.
func (t *Tracker) runCalibration(snap frame.Snapshot) (calibrate.Result, error) {
	if snap.Empty() {
		return calibrate.Result{}, ErrNoFrame
	}
	var res calibrate.Result
	budget := time.Duration(t.cfg.Level3BudgetMillis) * time.Millisecond
	err := t.breaker.Execute(func() error {
		return t.guard.Execute(context.Background(), budget, func(context.Context) error {
			res = t.calib.Calibrate(snap)
			return nil
		})
	})
	if err != nil {
		return calibrate.Result{}, err
	}
	return res, nil
}

func (t *Tracker) loop(done <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("tracker loop panic",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	interval := time.Duration(t.cfg.TickMillis) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			t.tick(now)
		}
	}
}

// tick is one pass of the monitoring loop: frame gating, region scoring,
// phase derivation, health bookkeeping and an optional recalibration.
func (t *Tracker) tick(now time.Time) {
	t.ticks++
	t.clock.onTick(true, now)

	snap := t.source.LatestFrame()
	if snap.Empty() {
		t.skips++
		t.publish(now)
		return
	}
	if !t.dedup.ShouldProcess(snap.Image) {
		t.skips++
		t.publish(now)
		return
	}

	err := t.breaker.Execute(func() error {
		return t.observe(snap, now)
	})
	if err != nil {
		t.logger.Debug("tick observation skipped", slog.Any("error", err))
	}

	if now.Sub(t.lastStats) >= statsLogInterval {
		t.lastStats = now
		t.logger.Debug("tracker.stats",
			slog.Uint64("ticks", t.ticks),
			slog.Uint64("skips", t.skips),
			slog.Uint64("recalibrations", t.recals),
			slog.String("phase", t.state.Phase.String()),
			slog.Float64("health", t.health))
	}
	t.publish(now)
}

// observe scores every tracked region on the snapshot, advances the phase
// machine and triggers recalibration when health degrades. The returned
// error feeds the shared breaker.
func (t *Tracker) observe(snap frame.Snapshot, now time.Time) error {
	for _, reg := range t.regions {
		crop, _, err := frame.ExtractRegion(snap.Image, reg.region.Rect())
		if err != nil {
			reg.observe(0, now)
			continue
		}
		reg.observe(t.scorer.Score(crop, reg.region.Kind), now)
	}

	next := t.deriveState(now)
	prev := t.state
	if next.Phase != prev.Phase {
		t.onPhaseChange(prev.Phase, next)
	}
	t.state = next

	t.updateHealth(now)
	if t.staleFrac > t.cfg.StaleFractionLimit || t.health < t.cfg.HealthFloor {
		return t.recalibrate(snap, now)
	}
	return nil
}

// deriveState rebuilds the game state from the regions visible right now.
func (t *Tracker) deriveState(now time.Time) GameState {
	visible := make(map[string]bool, len(t.regions))
	heroInHand := false
	heroTurn := false
	community := 0
	for role, reg := range t.regions {
		if !reg.visible() {
			continue
		}
		visible[role] = true
		switch {
		case role == calibrate.RoleHeroCard1 || role == calibrate.RoleHeroCard2:
			heroInHand = true
		case strings.HasPrefix(role, calibrate.RoleCommunityPrefix):
			community++
		case strings.HasPrefix(role, calibrate.RoleButtonPrefix):
			heroTurn = true
		}
	}
	return GameState{
		Phase:           DerivePhase(community, heroInHand),
		VisibleElements: visible,
		HeroInHand:      heroInHand,
		HeroTurn:        heroTurn,
		BettingActive:   heroTurn,
		CommunityCount:  community,
	}
}

// onPhaseChange refreshes every region's visibility expectation and tells
// the listeners. Pure bookkeeping, no other side effects.
func (t *Tracker) onPhaseChange(prev Phase, next GameState) {
	for _, reg := range t.regions {
		reg.expected = reg.req.expectedIn(next)
	}
	t.logger.Info("phase transition",
		slog.String("from", prev.String()),
		slog.String("to", next.Phase.String()),
		slog.Int("community_count", next.CommunityCount),
		slog.Bool("hero_in_hand", next.HeroInHand))

	t.mu.Lock()
	listeners := append([]PhaseListener(nil), t.listeners...)
	t.mu.Unlock()
	for _, l := range listeners {
		l(prev, next.Phase)
	}
}

// updateHealth recomputes the aggregate health: the mean of all region
// history means minus the fraction of regions gone stale.
func (t *Tracker) updateHealth(now time.Time) {
	if len(t.regions) == 0 {
		t.health = 0
		t.staleFrac = 0
		return
	}
	window := time.Duration(t.cfg.StaleAfterSeconds) * time.Second
	sum := 0.0
	stale := 0
	for _, reg := range t.regions {
		sum += reg.hist.mean()
		if reg.stale(now, window) {
			stale++
		}
	}
	t.staleFrac = float64(stale) / float64(len(t.regions))
	t.health = sum/float64(len(t.regions)) - t.staleFrac
	if t.health < 0 {
		t.health = 0
	}
}

// recalibrate reruns the full calibration and merges the outcome: a role is
// replaced, with its history reset, only when the fresh confidence beats the
// tracked region's mean history; unknown roles are adopted as new regions.
func (t *Tracker) recalibrate(snap frame.Snapshot, now time.Time) error {
	if !t.calibInFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer t.calibInFlight.Store(false)

	t.logger.Info("recalibration triggered",
		slog.Float64("health", t.health),
		slog.Float64("stale_fraction", t.staleFrac))

	var res calibrate.Result
	budget := time.Duration(t.cfg.Level3BudgetMillis) * time.Millisecond
	err := t.guard.Execute(context.Background(), budget, func(context.Context) error {
		res = t.calib.Calibrate(snap)
		return nil
	})
	if err != nil {
		return err
	}
	t.recals++
	if !res.TableDetected {
		t.logger.Warn("recalibration found no table, keeping tracked regions")
		return nil
	}

	replaced, adopted := 0, 0
	for role, reg := range res.Regions {
		cur, ok := t.regions[role]
		if !ok {
			t.regions[role] = newAdaptiveRegion(role, reg, t.cfg.HistorySize, t.cfg.ConfidenceThreshold, now)
			adopted++
			continue
		}
		if reg.Confidence > cur.hist.mean() {
			cur.region = reg
			cur.hist.reset()
			cur.hist.push(reg.Confidence)
			cur.lastSeen = now
			replaced++
		}
	}
	for _, reg := range t.regions {
		reg.expected = reg.req.expectedIn(t.state)
	}
	t.logger.Info("recalibration merged",
		slog.Int("replaced", replaced),
		slog.Int("adopted", adopted),
		slog.Float64("accuracy", res.AccuracyScore))
	return nil
}

// publish swaps in a fresh immutable status snapshot.
func (t *Tracker) publish(now time.Time) {
	regions := make(map[string]RegionStatus, len(t.regions))
	for role, reg := range t.regions {
		regions[role] = RegionStatus{
			Role:       role,
			Region:     reg.region,
			Confidence: reg.hist.latest(),
			Mean:       reg.hist.mean(),
			LastSeen:   reg.lastSeen,
			History:    reg.hist.values(),
			Expected:   reg.expected,
		}
	}
	session, total := t.clock.values()
	running := t.done != nil
	select {
	case <-t.done:
		running = false
	default:
	}
	t.status.Store(&Status{
		SessionID:      t.sessionID,
		Running:        running,
		Phase:          t.state.Phase,
		PhaseName:      t.state.Phase.String(),
		HeroInHand:     t.state.HeroInHand,
		HeroTurn:       t.state.HeroTurn,
		CommunityCount: t.state.CommunityCount,
		Health:         t.health,
		StaleFraction:  t.staleFrac,
		Regions:        regions,
		Ticks:          t.ticks,
		Skips:          t.skips,
		Recalibrations: t.recals,
		SessionUptime:  session,
		TotalUptime:    total,
		BreakerState:   t.breaker.State().String(),
		Timestamp:      now,
	})
}

// joinTimeout exceeds one worst-case tick: all three level budgets plus the
// tick interval and a margin.
func (t *Tracker) joinTimeout() time.Duration {
	budgets := time.Duration(t.cfg.Level1BudgetMillis+t.cfg.Level2BudgetMillis+t.cfg.Level3BudgetMillis) * time.Millisecond
	return budgets + time.Duration(t.cfg.TickMillis)*time.Millisecond + time.Second
}

var _ TrackerContract = (*Tracker)(nil)
