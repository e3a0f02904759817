package track

import (
	"time"

	"github.com/soocke/table-calib-go/domain/detect"
)

// history is a fixed-capacity ring of recent confidence scores.
type history struct {
	buf   []float64
	idx   int
	count int
}

func newHistory(size int) history {
	if size < 1 {
		size = 1
	}
	return history{buf: make([]float64, size)}
}

func (h *history) push(v float64) {
	h.buf[h.idx] = v
	h.idx = (h.idx + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
}

func (h *history) latest() float64 {
	if h.count == 0 {
		return 0
	}
	i := h.idx - 1
	if i < 0 {
		i = len(h.buf) - 1
	}
	return h.buf[i]
}

func (h *history) mean() float64 {
	if h.count == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < h.count; i++ {
		sum += h.buf[i]
	}
	return sum / float64(h.count)
}

// values returns the recorded scores oldest first.
func (h *history) values() []float64 {
	out := make([]float64, 0, h.count)
	start := h.idx - h.count
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[((start+i)%len(h.buf)+len(h.buf))%len(h.buf)])
	}
	return out
}

func (h *history) reset() {
	h.idx = 0
	h.count = 0
}

// AdaptiveRegion is one tracked role. Owned exclusively by the tracker loop;
// nothing outside the loop mutates it.
type AdaptiveRegion struct {
	role      string
	region    detect.Region
	req       requirement
	hist      history
	lastSeen  time.Time
	threshold float64
	expected  bool
}

func newAdaptiveRegion(role string, region detect.Region, historySize int, threshold float64, now time.Time) *AdaptiveRegion {
	r := &AdaptiveRegion{
		role:      role,
		region:    region,
		req:       roleRequirement(role),
		hist:      newHistory(historySize),
		lastSeen:  now,
		threshold: threshold,
	}
	r.hist.push(region.Confidence)
	return r
}

// observe records one fresh score and refreshes lastSeen when the score
// clears the region's threshold.
func (r *AdaptiveRegion) observe(score float64, now time.Time) {
	r.hist.push(score)
	if score > r.threshold {
		r.lastSeen = now
	}
}

// visible reports whether the most recent observation cleared the threshold.
func (r *AdaptiveRegion) visible() bool {
	return r.hist.count > 0 && r.hist.latest() > r.threshold
}

// stale reports whether the region has not been seen within window. Phase
// expectations do not excuse staleness; they only steer visibility
// bookkeeping.
func (r *AdaptiveRegion) stale(now time.Time, window time.Duration) bool {
	return now.Sub(r.lastSeen) > window
}
