package frame

import (
	"image"
	"log/slog"
	"sync/atomic"
	"time"
)

const statsLogInterval = 5 * time.Second

// Service acquires image frames (table rectangle or full screen) and exposes
// the latest capture alongside instrumentation data. Use NewService to
// construct an instance.
type Service interface {
	Start()
	Stop()
	LatestFrame() Snapshot
	Running() bool
	SetTableRectProvider(func() *image.Rectangle)
	Stats() Stats
}

type service struct {
	running      atomic.Bool
	latest       atomic.Pointer[Snapshot]
	rectFn       func() *image.Rectangle // table rectangle (optional)
	grabFn       func(*image.Rectangle) (*image.RGBA, error)
	interval     time.Duration
	logger       *slog.Logger
	captures     atomic.Uint64
	skipped      atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
}

// NewService constructs a capture service that pulls frames on the given
// interval and publishes them via LatestFrame.
func NewService(logger *slog.Logger, rectFn func() *image.Rectangle, interval time.Duration) Service {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &service{rectFn: rectFn, grabFn: grab, interval: interval, logger: logger}
}

func (s *service) SetTableRectProvider(fn func() *image.Rectangle) { s.rectFn = fn }

func (s *service) LatestFrame() Snapshot {
	snap := s.latest.Load()
	if snap == nil {
		return Snapshot{}
	}
	return *snap
}

func (s *service) Running() bool { return s.running.Load() }

func (s *service) Stats() Stats {
	captures := s.captures.Load()
	skipped := s.skipped.Load()
	total := s.captureNanos.Load()
	var avg time.Duration
	avgMicros := 0.0
	if captures > 0 && total > 0 {
		avg = time.Duration(total / captures)
		avgMicros = float64(avg) / float64(time.Microsecond)
	}
	snapshot := s.LatestFrame()
	age := time.Duration(0)
	if !snapshot.CapturedAt.IsZero() {
		age = time.Since(snapshot.CapturedAt)
	}
	return Stats{
		Captures:         captures,
		Skipped:          skipped,
		AvgCapture:       avg,
		AvgCaptureMicros: avgMicros,
		LastCapture:      snapshot.CapturedAt,
		LatestFrameAge:   age,
		Sequence:         snapshot.Sequence,
	}
}

func (s *service) Start() {
	if s.running.Load() {
		return
	}
	s.running.Store(true)
	go s.loop()
}

func (s *service) Stop() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
}

func (s *service) loop() {
	logTicker := time.NewTicker(statsLogInterval)
	defer logTicker.Stop()
	for s.running.Load() {
		start := time.Now()

		var rect *image.Rectangle
		if s.rectFn != nil {
			if r := s.rectFn(); r != nil && !r.Empty() {
				rect = r
			}
		}
		img, err := s.grabFn(rect)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("frame grab", "error", err)
			}
			img = nil
		}

		if img == nil {
			s.skipped.Add(1)
			time.Sleep(s.interval)
			continue
		}

		elapsed := time.Since(start)
		s.captureNanos.Add(uint64(elapsed.Nanoseconds()))
		s.captures.Add(1)
		seq := s.sequence.Add(1)
		s.latest.Store(&Snapshot{Image: img, CapturedAt: time.Now(), Sequence: seq})

		select {
		case <-logTicker.C:
			s.logStats()
		default:
		}

		time.Sleep(s.interval)
	}
}

func (s *service) logStats() {
	if s.logger == nil {
		return
	}
	stats := s.Stats()
	s.logger.Debug("frames.stats",
		"captures", stats.Captures,
		"skipped", stats.Skipped,
		"avg_capture", stats.AvgCapture,
		"age", stats.LatestFrameAge,
	)
}

// Ensure contract satisfaction
var (
	_ FrameSource     = (*service)(nil)
	_ ServiceContract = (*service)(nil)
)
