package reliability

import (
	"hash/fnv"
	"image"
	"log/slog"

	"github.com/soocke/table-calib-go/config"
)

// DedupGuard skips work on byte-identical consecutive frames.
// Not safe for concurrent use; call ShouldProcess from a single goroutine.
type DedupGuard struct {
	maxIdentical int
	logger       *slog.Logger
	lastHash     uint64
	hasLast      bool
	streak       int
	stallLogged  bool
}

// NewDedupGuard returns a configured DedupGuard. If cfg is nil the default
// configuration is used.
func NewDedupGuard(cfg *config.Config, logger *slog.Logger) *DedupGuard {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &DedupGuard{maxIdentical: cfg.MaxIdenticalFrames, logger: logger}
}

// ShouldProcess hashes img and reports whether the frame differs from the
// previous call's frame. Identical frames return false and extend a streak;
// once the streak passes the configured maximum the guard keeps returning
// false but logs a single stall signal for that streak. Any new hash resets
// the streak and returns true.
func (d *DedupGuard) ShouldProcess(img *image.RGBA) bool {
	h := contentHash(img)
	if d.hasLast && h == d.lastHash {
		d.streak++
		if d.streak > d.maxIdentical && !d.stallLogged {
			if d.logger != nil {
				d.logger.Warn("frame stream stalled", "identical_frames", d.streak)
			}
			d.stallLogged = true
		}
		return false
	}
	d.lastHash = h
	d.hasLast = true
	d.streak = 0
	d.stallLogged = false
	return true
}

// Streak returns the current identical-frame streak length.
func (d *DedupGuard) Streak() int { return d.streak }

// contentHash computes an FNV-1a digest over the frame pixels.
func contentHash(img *image.RGBA) uint64 {
	h := fnv.New64a()
	if img == nil {
		return h.Sum64()
	}
	b := img.Bounds()
	if b.Empty() {
		return h.Sum64()
	}
	rowLen := b.Dx() * 4
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		h.Write(img.Pix[off : off+rowLen])
	}
	return h.Sum64()
}
