package track

import (
	"errors"
	"image"
	"time"

	"github.com/soocke/table-calib-go/domain/calibrate"
	"github.com/soocke/table-calib-go/domain/detect"
	"github.com/soocke/table-calib-go/domain/frame"
)

// ErrCalibrationBusy is returned by CalibrateNow while another calibration
// holds the single-flight guard.
var ErrCalibrationBusy = errors.New("calibration already in flight")

// ErrNoFrame is returned by CalibrateNow when no frame is available.
var ErrNoFrame = errors.New("no frame available")

// FrameSource is the slice of the capture service the tracker consumes.
type FrameSource interface {
	LatestFrame() frame.Snapshot
}

// Calibrator produces a full role layout for one snapshot.
type Calibrator interface {
	Calibrate(snap frame.Snapshot) calibrate.Result
}

// RegionScorer re-scores a tracked region's crop against its kind.
type RegionScorer interface {
	Score(img *image.RGBA, kind detect.Kind) float64
}

// TrackerContract is the caller-facing surface of the tracker.
type TrackerContract interface {
	Start() bool
	Stop()
	Status() Status
	CalibrateNow() (calibrate.Result, error)
	AddPhaseListener(l PhaseListener)
}

// RegionStatus is the read-only view of one tracked region.
type RegionStatus struct {
	Role       string        `json:"role"`
	Region     detect.Region `json:"region"`
	Confidence float64       `json:"confidence"`
	Mean       float64       `json:"mean"`
	LastSeen   time.Time     `json:"last_seen"`
	History    []float64     `json:"history"`
	Expected   bool          `json:"expected"`
}

// Status is a point-in-time snapshot of the tracker. Every field is a copy;
// mutating it has no effect on the live state.
type Status struct {
	SessionID      string                  `json:"session_id"`
	Running        bool                    `json:"running"`
	Phase          Phase                   `json:"phase"`
	PhaseName      string                  `json:"phase_name"`
	HeroInHand     bool                    `json:"hero_in_hand"`
	HeroTurn       bool                    `json:"hero_turn"`
	CommunityCount int                     `json:"community_count"`
	Health         float64                 `json:"health"`
	StaleFraction  float64                 `json:"stale_fraction"`
	Regions        map[string]RegionStatus `json:"regions"`
	Ticks          uint64                  `json:"ticks"`
	Skips          uint64                  `json:"skips"`
	Recalibrations uint64                  `json:"recalibrations"`
	SessionUptime  time.Duration           `json:"session_uptime"`
	TotalUptime    time.Duration           `json:"total_uptime"`
	BreakerState   string                  `json:"breaker_state"`
	Timestamp      time.Time               `json:"timestamp"`
}
