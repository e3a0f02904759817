package calibrate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/soocke/table-calib-go/domain/frame"
)

// Archived snapshots are downscaled before writing so a long debug session
// does not fill the disk with full resolution frames.
const (
	archiveMaxW = 480
	archiveMaxH = 360
)

// Archiver writes downscaled PNG copies of calibrated frames for offline
// inspection. All methods are safe on a nil receiver, so callers can wire
// it unconditionally.
type Archiver struct {
	dir    string
	logger *slog.Logger
}

// NewArchiver returns an archiver rooted at dir, or nil when dir is empty.
func NewArchiver(dir string, logger *slog.Logger) *Archiver {
	if dir == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{dir: dir, logger: logger}
}

// Save writes one snapshot under the layout hash. Failures are logged and
// swallowed; archiving never disturbs calibration.
func (a *Archiver) Save(uiHash string, snap frame.Snapshot) {
	if a == nil || snap.Empty() {
		return
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		a.logger.Error("archive dir", slog.Any("error", err))
		return
	}
	thumb := frame.ScaleToFit(snap.Image, archiveMaxW, archiveMaxH)
	name := fmt.Sprintf("calib_%s_%d.png", uiHash, time.Now().UnixNano())
	path := filepath.Join(a.dir, name)
	err := imaging.Save(thumb, path)
	if thumb != snap.Image {
		frame.RecycleFrame(thumb)
	}
	if err != nil {
		a.logger.Error("archive save", slog.Any("error", err))
		return
	}
	a.logger.Debug("archived calibration frame", slog.String("path", path))
}
