package frame

import (
	"image"
	"time"
)

// Snapshot carries one captured frame and its metadata. The zero value is
// the empty-frame sentinel: a nil Image means no detection is possible this
// tick.
type Snapshot struct {
	Image      *image.RGBA
	CapturedAt time.Time
	Sequence   uint64
}

// Empty reports whether the snapshot is the sentinel (no usable pixels).
func (s Snapshot) Empty() bool {
	return s.Image == nil || s.Image.Bounds().Empty()
}

// Stats summarises capture loop behaviour for instrumentation.
type Stats struct {
	Captures         uint64
	Skipped          uint64
	AvgCapture       time.Duration
	AvgCaptureMicros float64
	LastCapture      time.Time
	LatestFrameAge   time.Duration
	Sequence         uint64
}

// FrameSource provides read-only access to captured frames.
// LatestFrame returns the freshest snapshot while Running reports activity.
type FrameSource interface {
	LatestFrame() Snapshot
	Running() bool
}

// TableRectProvider returns the table capture rectangle, if any. A nil
// rectangle means the full screen is captured.
type TableRectProvider interface{ TableRect() *image.Rectangle }

// ServiceContract exposes basic lifecycle control for the capture service.
type ServiceContract interface {
	Start()
	Stop()
	Running() bool
}
